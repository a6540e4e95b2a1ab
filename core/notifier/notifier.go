/*Package notifier delivers notifications about successful mutating
operations to interested parties, e.g. a kafka topic.
*/
package notifier

import (
	"context"
	"time"

	"github.com/docstack-tech/docstack/core"
	"github.com/docstack-tech/docstack/core/logger"
)

// Notification describes one successful create, update or destroy operation.
type Notification struct {
	Resource   string      `json:"resource"`
	Action     core.Action `json:"action"`
	ResourceID string      `json:"resource_id"`
	Payload    []byte      `json:"payload,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
}

// Notifier receives a notification for every successful mutating operation.
// Delivery failures are logged by the caller and never fail the request that
// triggered them.
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// LogNotifier writes notifications to the context logger. Useful default for
// development setups.
type LogNotifier struct{}

// Notify logs the notification.
func (LogNotifier) Notify(ctx context.Context, notification Notification) error {
	logger.FromContext(ctx).Infof("notification: %s %s %s",
		notification.Action, notification.Resource, notification.ResourceID)
	return nil
}
