package providers

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"place-api/internal/place"
)

const photonBaseURL = "https://photon.komoot.io"

// 文档注释：Photon 数据源（首选）
// 背景：基于 OSM 的前缀检索接口，延迟低、配额宽松，作为回退链第一位。
// 约束：返回 GeoJSON FeatureCollection，坐标为 [lon, lat]。
type Photon struct {
	base
}

func NewPhoton(cfg Settings, client *http.Client) *Photon {
	cfg = cfg.withDefaults("photon", photonBaseURL)
	return &Photon{base: newBase(cfg, client)}
}

func (p *Photon) Enabled() bool { return p.cfg.Enabled }

type photonResponse struct {
	Features []struct {
		Geometry struct {
			Coordinates []float64 `json:"coordinates"`
		} `json:"geometry"`
		Properties struct {
			Name     string `json:"name"`
			City     string `json:"city"`
			State    string `json:"state"`
			Country  string `json:"country"`
			OSMKey   string `json:"osm_key"`
			OSMValue string `json:"osm_value"`
			Type     string `json:"type"`
		} `json:"properties"`
	} `json:"features"`
}

func (p *Photon) Query(ctx context.Context, text string, typ place.Type) ([]place.Result, error) {
	if !p.Enabled() {
		return nil, p.disabledErr()
	}
	q := url.Values{}
	q.Set("q", text)
	q.Set("limit", strconv.Itoa(p.cfg.Limit))
	q.Set("lang", p.cfg.Lang)
	switch typ {
	case place.TypeFlight:
		q.Add("osm_tag", "place:city")
		q.Add("osm_tag", "aeroway:aerodrome")
	case place.TypeLodging:
		q.Add("osm_tag", "tourism")
	}
	var r photonResponse
	if err := p.getJSON(ctx, "/api/", q, &r); err != nil {
		return nil, err
	}
	fs := make([]place.Fields, 0, len(r.Features))
	for _, f := range r.Features {
		pr := f.Properties
		fl := place.Fields{
			Name:         firstNonEmpty(pr.Name, pr.City),
			City:         pr.City,
			State:        pr.State,
			Country:      pr.Country,
			LocationType: firstNonEmpty(pr.OSMValue, pr.Type),
		}
		if len(f.Geometry.Coordinates) >= 2 {
			fl.Longitude = place.Coord(f.Geometry.Coordinates[0])
			fl.Latitude = place.Coord(f.Geometry.Coordinates[1])
		}
		fs = append(fs, fl)
	}
	return toResults(fs), nil
}
