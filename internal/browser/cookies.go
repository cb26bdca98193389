package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"

	"github.com/JakeFAU/disclosure-scraper/internal/session"
)

// Cookies returns every cookie held by the browser.
func (p *Page) Cookies(ctx context.Context) ([]session.Cookie, error) {
	var raw []*network.Cookie
	err := p.run(ctx, defaultActionTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		raw, err = storage.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("read cookies: %w", err)
	}
	out := make([]session.Cookie, 0, len(raw))
	for _, c := range raw {
		out = append(out, fromNetwork(c))
	}
	return out, nil
}

// SetCookies installs cookies into the browser.
func (p *Page) SetCookies(ctx context.Context, cookies []session.Cookie) error {
	if len(cookies) == 0 {
		return nil
	}
	params := make([]*network.CookieParam, 0, len(cookies))
	for _, c := range cookies {
		params = append(params, toNetwork(c))
	}
	err := p.run(ctx, defaultActionTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		return network.SetCookies(params).Do(ctx)
	}))
	if err != nil {
		return fmt.Errorf("set cookies: %w", err)
	}
	return nil
}

func fromNetwork(c *network.Cookie) session.Cookie {
	out := session.Cookie{
		Name:     c.Name,
		Value:    c.Value,
		Domain:   c.Domain,
		Path:     c.Path,
		HTTPOnly: c.HTTPOnly,
		Secure:   c.Secure,
		SameSite: string(c.SameSite),
		Expires:  -1,
	}
	if !c.Session && c.Expires > 0 {
		out.Expires = c.Expires
	}
	return out
}

func toNetwork(c session.Cookie) *network.CookieParam {
	param := &network.CookieParam{
		Name:     c.Name,
		Value:    c.Value,
		Domain:   c.Domain,
		Path:     c.Path,
		HTTPOnly: c.HTTPOnly,
		Secure:   c.Secure,
	}
	if param.Path == "" {
		param.Path = "/"
	}
	if c.SameSite != "" {
		param.SameSite = network.CookieSameSite(c.SameSite)
	}
	if !c.IsSession() {
		expires := cdp.TimeSinceEpoch(c.ExpiresAt().Truncate(time.Second))
		param.Expires = &expires
	}
	return param
}
