package providers

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"place-api/internal/logger"
	"place-api/internal/place"
)

const locationIQBaseURL = "https://api.locationiq.com"

// 文档注释：LocationIQ 数据源（第三位）
// 约束：需要 API Key，缺失即禁用；无匹配时对端返回 404 {"error":"Unable to geocode"}，按零结果处理而非失败。
type LocationIQ struct {
	base
}

func NewLocationIQ(cfg Settings, client *http.Client) *LocationIQ {
	cfg = cfg.withDefaults("locationiq", locationIQBaseURL)
	return &LocationIQ{base: newBase(cfg, client)}
}

func (l *LocationIQ) Enabled() bool { return l.cfg.Enabled && l.cfg.APIKey != "" }

type locationIQPlace struct {
	Lat          string `json:"lat"`
	Lon          string `json:"lon"`
	DisplayPlace string `json:"display_place"`
	Type         string `json:"type"`
	Address      struct {
		Name    string `json:"name"`
		City    string `json:"city"`
		State   string `json:"state"`
		Country string `json:"country"`
	} `json:"address"`
}

func (l *LocationIQ) Query(ctx context.Context, text string, typ place.Type) ([]place.Result, error) {
	if !l.Enabled() {
		return nil, l.disabledErr()
	}
	q := url.Values{}
	q.Set("key", l.cfg.APIKey)
	q.Set("q", text)
	q.Set("limit", strconv.Itoa(l.cfg.Limit))
	q.Set("accept-language", l.cfg.Lang)
	q.Set("normalizecity", "1")
	switch typ {
	case place.TypeFlight:
		q.Set("tag", "place:city,aeroway:aerodrome")
	case place.TypeLodging:
		q.Set("tag", "tourism:hotel")
	}
	var ps []locationIQPlace
	if err := l.getJSON(ctx, "/v1/autocomplete", q, &ps); err != nil {
		var pe *ProviderError
		if errors.As(err, &pe) && pe.StatusCode == http.StatusNotFound {
			logger.L().Debug("locationiq_no_match", "q", text)
			return nil, nil
		}
		return nil, err
	}
	fs := make([]place.Fields, 0, len(ps))
	for _, p := range ps {
		fs = append(fs, place.Fields{
			Name:         firstNonEmpty(p.Address.Name, p.DisplayPlace),
			City:         p.Address.City,
			State:        p.Address.State,
			Country:      p.Address.Country,
			Latitude:     parseCoord(p.Lat),
			Longitude:    parseCoord(p.Lon),
			LocationType: p.Type,
		})
	}
	return toResults(fs), nil
}
