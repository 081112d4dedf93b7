package rabbitmq

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigURL(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		want string
	}{
		{"default vhost", Config{Host: "mq", Port: 5672, User: "guest", Password: "guest"}, "amqp://guest:guest@mq:5672/"},
		{"root vhost", Config{Host: "mq", Port: 5672, User: "u", Password: "p", VHost: "/"}, "amqp://u:p@mq:5672/"},
		{"named vhost", Config{Host: "mq", Port: 5671, User: "u", Password: "p", VHost: "dining", UseTLS: true}, "amqps://u:p@mq:5671/dining"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.cfg.URL())
		})
	}
}

func TestPingClosedClient(t *testing.T) {
	assert.Error(t, (&Client{}).Ping())
}
