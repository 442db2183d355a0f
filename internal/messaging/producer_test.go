package messaging_test

import (
	"encoding/json"
	"testing"
	"time"

	"bugtracker-service/internal/logger"
	"bugtracker-service/internal/messaging"
	"bugtracker-service/testing/testnats"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProducerPublishes(t *testing.T) {
	natsContainer := testnats.SetupSharedNATS(t)
	defer natsContainer.Cleanup(t)

	producer, err := messaging.NewProducer(natsContainer.URL, "bugtracker.notifications", logger.New())
	require.NoError(t, err)
	defer producer.Close()

	conn := natsContainer.Connect(t)
	sub, err := conn.SubscribeSync("bugtracker.notifications")
	require.NoError(t, err)
	require.NoError(t, conn.Flush())

	event := map[string]any{
		"notification_type": "bug_assignment",
		"user_id":           7,
		"title":             "New Bug Assigned",
	}
	require.NoError(t, producer.SendMessage(event))

	msg, err := sub.NextMsg(5 * time.Second)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(msg.Data, &got))
	assert.Equal(t, "bug_assignment", got["notification_type"])
	assert.Equal(t, "New Bug Assigned", got["title"])
}
