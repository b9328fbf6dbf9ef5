// Package endpoint opens transport roles by address, choosing the
// implementation from the address scheme: ws:// selects websockets; tcp://,
// ipc://, inproc:// and tls+tcp:// select the scalability protocols.
package endpoint

import (
	"fmt"
	"strings"

	"github.com/Tyrowin/relaychat/internal/config"
	"github.com/Tyrowin/relaychat/internal/transport"
	"github.com/Tyrowin/relaychat/internal/transport/nanomsg"
	"github.com/Tyrowin/relaychat/internal/transport/wsock"
)

type kind int

const (
	kindWebsocket kind = iota
	kindNanomsg
)

var schemes = map[string]kind{
	"ws":      kindWebsocket,
	"tcp":     kindNanomsg,
	"ipc":     kindNanomsg,
	"inproc":  kindNanomsg,
	"tls+tcp": kindNanomsg,
}

func kindOf(addr string) (kind, error) {
	scheme, _, ok := strings.Cut(addr, "://")
	if !ok {
		return 0, fmt.Errorf("endpoint %q: missing scheme", addr)
	}
	k, ok := schemes[strings.ToLower(scheme)]
	if !ok {
		return 0, fmt.Errorf("endpoint %q: unsupported scheme %q", addr, scheme)
	}
	return k, nil
}

// Validate reports whether addr names a supported endpoint.
func Validate(addr string) error {
	_, err := kindOf(addr)
	return err
}

func wsOptions(cfg config.Config) wsock.Options {
	return wsock.Options{
		MaxMessageSize: cfg.MaxMessageSize,
		RateLimit: wsock.RateLimit{
			Burst:          cfg.RateLimit.Burst,
			RefillInterval: cfg.RateLimit.RefillInterval,
		},
		AllowedOrigins:  cfg.AllowedOrigins,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}
}

// ListenReply opens the server's reply endpoint.
func ListenReply(addr string, cfg config.Config) (transport.Replier, error) {
	k, err := kindOf(addr)
	if err != nil {
		return nil, err
	}
	if k == kindWebsocket {
		r, err := wsock.ListenReply(addr, wsOptions(cfg))
		if err != nil {
			return nil, err
		}
		return r, nil
	}
	r, err := nanomsg.ListenReply(addr)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// ListenPublish opens the server's publish endpoint.
func ListenPublish(addr string, cfg config.Config) (transport.Publisher, error) {
	k, err := kindOf(addr)
	if err != nil {
		return nil, err
	}
	if k == kindWebsocket {
		h, err := wsock.ListenPublish(addr, wsOptions(cfg))
		if err != nil {
			return nil, err
		}
		return h, nil
	}
	p, err := nanomsg.ListenPublish(addr)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// DialRequest opens the client's request endpoint.
func DialRequest(addr string) (transport.Requester, error) {
	k, err := kindOf(addr)
	if err != nil {
		return nil, err
	}
	if k == kindWebsocket {
		r, err := wsock.DialRequest(addr)
		if err != nil {
			return nil, err
		}
		return r, nil
	}
	r, err := nanomsg.DialRequest(addr)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// DialSubscribe opens the client's subscription.
func DialSubscribe(addr string) (transport.Subscriber, error) {
	k, err := kindOf(addr)
	if err != nil {
		return nil, err
	}
	if k == kindWebsocket {
		s, err := wsock.DialSubscribe(addr)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	s, err := nanomsg.DialSubscribe(addr)
	if err != nil {
		return nil, err
	}
	return s, nil
}
