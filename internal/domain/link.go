package domain

import (
	"fmt"
	"net/url"
	"time"
)

var (
	ErrLinkCodeRequired  = fmt.Errorf("%w: short link code is required", ErrInvalidArgument)
	ErrLinkInvalidTarget = fmt.Errorf("%w: short link target must be an absolute path or http(s) url", ErrInvalidArgument)
)

// ShortLink maps a short code to a storefront location, e.g. a product page.
type ShortLink struct {
	Code      string    `json:"code"`
	Target    string    `json:"target"`
	CreatedAt time.Time `json:"createdAt"`
}

func (l *ShortLink) Validate() error {
	if l.Code == "" {
		return ErrLinkCodeRequired
	}
	u, err := url.Parse(l.Target)
	if err != nil || l.Target == "" {
		return ErrLinkInvalidTarget
	}
	if u.IsAbs() {
		if u.Scheme != "http" && u.Scheme != "https" {
			return ErrLinkInvalidTarget
		}
		return nil
	}
	if len(u.Path) == 0 || u.Path[0] != '/' {
		return ErrLinkInvalidTarget
	}
	return nil
}
