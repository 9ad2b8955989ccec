package providers

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"place-api/internal/place"
)

const nominatimBaseURL = "https://nominatim.openstreetmap.org"

// 文档注释：Nominatim 数据源（第二位）
// 约束：使用政策要求每次请求携带可识别的 User-Agent，且不超过 1 次/秒；未配置 User-Agent 时视为禁用。
type Nominatim struct {
	base
}

func NewNominatim(cfg Settings, client *http.Client) *Nominatim {
	cfg = cfg.withDefaults("nominatim", nominatimBaseURL)
	return &Nominatim{base: newBase(cfg, client)}
}

func (n *Nominatim) Enabled() bool { return n.cfg.Enabled && n.cfg.UserAgent != "" }

type nominatimPlace struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	AddressType string `json:"addresstype"`
	Address     struct {
		City         string `json:"city"`
		Town         string `json:"town"`
		Village      string `json:"village"`
		Municipality string `json:"municipality"`
		State        string `json:"state"`
		Country      string `json:"country"`
	} `json:"address"`
}

func (n *Nominatim) Query(ctx context.Context, text string, typ place.Type) ([]place.Result, error) {
	if !n.Enabled() {
		return nil, n.disabledErr()
	}
	q := url.Values{}
	q.Set("q", text)
	q.Set("format", "jsonv2")
	q.Set("addressdetails", "1")
	q.Set("limit", strconv.Itoa(n.cfg.Limit))
	q.Set("accept-language", n.cfg.Lang)
	if typ == place.TypeFlight {
		q.Set("featureType", "city")
	}
	var ps []nominatimPlace
	if err := n.getJSON(ctx, "/search", q, &ps); err != nil {
		return nil, err
	}
	fs := make([]place.Fields, 0, len(ps))
	for _, p := range ps {
		a := p.Address
		city := firstNonEmpty(a.City, a.Town, a.Village, a.Municipality)
		fs = append(fs, place.Fields{
			Name:         firstNonEmpty(p.Name, city),
			City:         city,
			State:        a.State,
			Country:      a.Country,
			Latitude:     parseCoord(p.Lat),
			Longitude:    parseCoord(p.Lon),
			LocationType: firstNonEmpty(p.AddressType, p.Type),
		})
	}
	return toResults(fs), nil
}
