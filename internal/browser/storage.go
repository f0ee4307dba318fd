package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// StorageState is persisted authentication state: cookies plus the local
// storage of a set of origins. The json layout is the one playwright uses
// for storageState files so existing files can be reused.
type StorageState struct {
	Cookies []Cookie      `json:"cookies"`
	Origins []OriginState `json:"origins"`
}

type Cookie struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Domain string `json:"domain"`
	Path   string `json:"path"`
	// Expires is in unix seconds, -1 for session cookies.
	Expires  float64 `json:"expires"`
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
	SameSite string  `json:"sameSite,omitempty"`
}

type OriginState struct {
	Origin       string      `json:"origin"`
	LocalStorage []NameValue `json:"localStorage"`
}

type NameValue struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// LoadStorageState reads a storage state file.
func LoadStorageState(path string) (*StorageState, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading storage state: %w", err)
	}
	var s StorageState
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("error parsing storage state %s: %w", path, err)
	}
	return &s, nil
}

func (s *StorageState) cookieParams() []*network.CookieParam {
	params := make([]*network.CookieParam, 0, len(s.Cookies))
	for _, c := range s.Cookies {
		p := &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
		}
		if p.Path == "" {
			p.Path = "/"
		}
		if c.Expires > 0 {
			sec := int64(c.Expires)
			exp := cdp.TimeSinceEpoch(time.Unix(sec, int64((c.Expires-float64(sec))*1e9)))
			p.Expires = &exp
		}
		switch strings.ToLower(c.SameSite) {
		case "strict":
			p.SameSite = network.CookieSameSiteStrict
		case "lax":
			p.SameSite = network.CookieSameSiteLax
		case "none":
			p.SameSite = network.CookieSameSiteNone
		}
		params = append(params, p)
	}
	return params
}

// localStorageScript returns a script that fills the local storage of
// every known origin when a document of that origin is created.
func (s *StorageState) localStorageScript() string {
	items := map[string]map[string]string{}
	for _, o := range s.Origins {
		if len(o.LocalStorage) == 0 {
			continue
		}
		kv := map[string]string{}
		for _, nv := range o.LocalStorage {
			kv[nv.Name] = nv.Value
		}
		items[o.Origin] = kv
	}
	if len(items) == 0 {
		return ""
	}
	b, _ := json.Marshal(items)
	return fmt.Sprintf(`(() => {
  const state = %s;
  const items = state[window.location.origin];
  if (!items) return;
  try {
    for (const [k, v] of Object.entries(items)) window.localStorage.setItem(k, v);
  } catch (e) {}
})()`, b)
}

// actions returns the chromedp actions that apply the state to a fresh tab.
func (s *StorageState) actions() []chromedp.Action {
	var actions []chromedp.Action
	if params := s.cookieParams(); len(params) > 0 {
		actions = append(actions, network.SetCookies(params))
	}
	if script := s.localStorageScript(); script != "" {
		actions = append(actions, chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(script).Do(ctx)
			return err
		}))
	}
	return actions
}
