package test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/suite"

	"github.com/docstack-tech/docstack/core/notifier"
	"github.com/docstack-tech/docstack/core/storage"
)

type ApiTestSuite struct {
	IntegrationTestSuite
}

func TestApiTestSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, &ApiTestSuite{})
}

func (s *ApiTestSuite) TestDocumentLifecycle() {
	articles := s.client.Collection("article")

	var created storage.Document
	status, err := articles.Create(storage.Document{"title": "first", "published": true}, &created)
	s.Require().NoError(err)
	s.Equal(http.StatusOK, status)
	s.NotEmpty(created.ID())
	s.NotEmpty(created.Rev())
	s.Equal("article", created.Type())

	var loaded storage.Document
	status, err = articles.Read(created.ID(), &loaded)
	s.Require().NoError(err)
	s.Equal(http.StatusOK, status)
	s.Equal("first", loaded["title"])

	var updated storage.Document
	status, err = articles.Update(created.ID(), created.Rev(),
		storage.Document{"title": "first, edited", "published": false}, &updated)
	s.Require().NoError(err)
	s.Equal(http.StatusOK, status)
	s.NotEqual(created.Rev(), updated.Rev())

	// the first revision is stale now
	status, _ = articles.Update(created.ID(), created.Rev(), storage.Document{"title": "nope"}, nil)
	s.Equal(http.StatusConflict, status)

	status, err = articles.Delete(updated.ID(), updated.Rev())
	s.Require().NoError(err)
	s.Equal(http.StatusOK, status)

	status, _ = articles.Read(created.ID(), nil)
	s.Equal(http.StatusNotFound, status)
}

func (s *ApiTestSuite) TestViewsAndSearch() {
	articles := s.client.Collection("article")
	titles := []string{"postgres in anger", "kafka field notes", "the third one"}
	for i, title := range titles {
		_, err := articles.Create(storage.Document{
			"title":     title,
			"body":      "content",
			"published": i < 2,
		}, nil)
		s.Require().NoError(err)
	}

	var result storage.ViewResult
	status, err := articles.View("published", &result, nil)
	s.Require().NoError(err)
	s.Equal(http.StatusOK, status)
	s.Equal(2, result.TotalRows)

	_, err = articles.View("by_title", &result, map[string]string{"limit": "1"})
	s.Require().NoError(err)
	s.Require().Len(result.Rows, 1)
	s.GreaterOrEqual(result.TotalRows, 3)

	status, err = articles.Search("content", &result, map[string]string{"q": "kafka"})
	s.Require().NoError(err)
	s.Equal(http.StatusOK, status)
	s.Require().NotEmpty(result.Rows)
}

func (s *ApiTestSuite) TestValidation() {
	status, err := s.client.Collection("article").Create(storage.Document{"body": "no title"}, nil)
	s.Equal(http.StatusBadRequest, status)
	s.Error(err)
	s.Contains(err.Error(), "title")
}

func (s *ApiTestSuite) TestNotificationsArriveOnKafka() {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  []string{s.kafkaAddr},
		Topic:    notificationTopic,
		GroupID:  "api-test",
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	defer reader.Close()

	articles := s.client.Collection("article")
	var created storage.Document
	_, err := articles.Create(storage.Document{"title": "observed"}, &created)
	s.Require().NoError(err)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	for {
		msg, err := reader.ReadMessage(ctx)
		s.Require().NoError(err)
		var n notifier.Notification
		s.Require().NoError(json.Unmarshal(msg.Value, &n))
		if n.ResourceID != created.ID() {
			// other tests publish too, skip their messages
			continue
		}
		s.Equal("article", n.Resource)
		s.Equal("create", string(n.Action))
		s.Contains(string(n.Payload), "observed")
		break
	}
}
