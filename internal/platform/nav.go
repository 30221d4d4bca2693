package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/vidsyncd/vidsyncd/internal/models"
)

const navEndpoint = "https://api.bilibili.com/x/web-interface/nav"

// navWbiFetcher is the production WbiKeyFetcher: it hits the nav endpoint
// unsigned (nav is one of the few endpoints that doesn't itself require wbi
// signing) and pulls img_key/sub_key out of the wbi_img URLs in the
// response, which is also the only place the platform exposes them.
type navWbiFetcher struct {
	http *http.Client
}

// NewNavWbiFetcher builds the nav-endpoint-backed WbiKeyFetcher. httpClient
// is the plain standard client, not a signed platform.Client, since nav is
// what bootstraps the keys platform.Client needs to sign anything else.
func NewNavWbiFetcher(httpClient *http.Client) WbiKeyFetcher {
	return &navWbiFetcher{http: httpClient}
}

type navResponse struct {
	Code int    `json:"code"`
	Data struct {
		WbiImg struct {
			ImgURL string `json:"img_url"`
			SubURL string `json:"sub_url"`
		} `json:"wbi_img"`
	} `json:"data"`
}

func (f *navWbiFetcher) FetchWbiKeys(ctx context.Context) (models.WbiKeys, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, navEndpoint, nil)
	if err != nil {
		return models.WbiKeys{}, err
	}

	resp, err := f.http.Do(req)
	if err != nil {
		return models.WbiKeys{}, fmt.Errorf("platform: fetching nav: %w", err)
	}
	defer resp.Body.Close()

	var nav navResponse
	if err := json.NewDecoder(resp.Body).Decode(&nav); err != nil {
		return models.WbiKeys{}, fmt.Errorf("platform: decoding nav response: %w", err)
	}

	return models.WbiKeys{
		ImgKey:    keyFromURL(nav.Data.WbiImg.ImgURL),
		SubKey:    keyFromURL(nav.Data.WbiImg.SubURL),
		FetchedAt: models.Now(),
	}, nil
}

// keyFromURL pulls the filename stem out of a wbi asset URL, e.g.
// ".../7cd084941338484aae1ad9425b84077c.png" -> the 32-char hex stem.
func keyFromURL(rawURL string) string {
	slash := -1
	for i := len(rawURL) - 1; i >= 0; i-- {
		if rawURL[i] == '/' {
			slash = i
			break
		}
	}
	name := rawURL[slash+1:]
	dot := -1
	for i := 0; i < len(name); i++ {
		if name[i] == '.' {
			dot = i
			break
		}
	}
	if dot < 0 {
		return name
	}
	return name[:dot]
}
