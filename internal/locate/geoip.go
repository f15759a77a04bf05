package locate

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/oschwald/geoip2-golang"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/residence-finder/internal/model"
)

// cityReader is the subset of *geoip2.Reader used here.
type cityReader interface {
	City(ip net.IP) (*geoip2.City, error)
	Close() error
}

// GeoIPLocator resolves the client IP against a MaxMind City database.
type GeoIPLocator struct {
	reader cityReader
}

// NewGeoIPLocator opens the database at path.
func NewGeoIPLocator(path string) (*GeoIPLocator, error) {
	r, err := geoip2.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "locate: open geoip db %s", path)
	}
	return &GeoIPLocator{reader: r}, nil
}

// Close releases the database.
func (g *GeoIPLocator) Close() error {
	return g.reader.Close()
}

func (g *GeoIPLocator) Locate(_ context.Context, req Request) (model.Coord, error) {
	if req.IP == nil {
		return model.Coord{}, ErrNoSignal
	}
	// Local and private addresses are not in the database; let the next locator try.
	if !isPublic(req.IP) {
		return model.Coord{}, eris.Wrapf(ErrNoSignal, "locate: non-public ip %s", req.IP)
	}

	city, err := g.reader.City(req.IP)
	if err != nil {
		zap.L().Warn("locate: geoip lookup failed", zap.String("ip", req.IP.String()), zap.Error(err))
		return model.Coord{}, NewError(Unknown, eris.Wrap(err, "locate: geoip lookup"))
	}
	coord := model.NewCoord(city.Location.Latitude, city.Location.Longitude)
	if coord == (model.Coord{}) || !coord.Valid() {
		return model.Coord{}, NewError(PositionUnavailable, eris.Errorf("locate: no location for %s", req.IP))
	}
	return coord, nil
}

func isPublic(ip net.IP) bool {
	return !(ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast())
}

// ClientIP returns the originating client address. Reverse proxy headers are
// honored only when trustProxy is set; otherwise any client could spoof them.
func ClientIP(r *http.Request, trustProxy bool) net.IP {
	if trustProxy {
		h := r.Header
		for _, name := range []string{"X-Forwarded-For", "CF-Connecting-IP", "X-Real-IP"} {
			if v := h.Get(name); v != "" {
				if ip := net.ParseIP(strings.TrimSpace(strings.Split(v, ",")[0])); ip != nil {
					return ip
				}
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return net.ParseIP(host)
}
