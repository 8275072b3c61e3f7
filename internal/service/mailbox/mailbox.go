// Package mailbox queues relay frames for users that are currently
// offline. Frames wait in a per-recipient redis list and are drained in
// arrival order the next time the recipient connects.
package mailbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"cloak_chat/internal/model"
)

type (
	Mailbox struct {
		rdb *redis.Client
	}
)

func New(rdb *redis.Client) *Mailbox {
	return &Mailbox{
		rdb: rdb,
	}
}

func (m *Mailbox) key(to string) string {
	return fmt.Sprintf("cloak_mailbox:%s", to)
}

func (m *Mailbox) Enqueue(ctx context.Context, msg *model.WireMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return m.rdb.RPush(ctx, m.key(msg.To), data).Err()
}

// Drain returns every queued frame for a recipient and empties the
// queue.
func (m *Mailbox) Drain(ctx context.Context, to string) ([]*model.WireMessage, error) {
	key := m.key(to)
	vals, err := m.rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	m.rdb.Del(ctx, key)

	var res []*model.WireMessage
	for _, v := range vals {
		var msg model.WireMessage
		if err := json.Unmarshal([]byte(v), &msg); err != nil {
			return nil, err
		}
		res = append(res, &msg)
	}

	return res, nil
}
