package geometry

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"mapscraper-desktop/internal/utils/naming"
)

// DegreesPerKm approximates one kilometre in degrees of latitude
const DegreesPerKm = 0.009

var (
	ErrInvalidCoordinate   = errors.New("coordinates must be finite numbers")
	ErrPolarLatitude       = errors.New("latitude must be strictly between -90 and 90")
	ErrInvalidRadius       = errors.New("radius must be a positive number of kilometres")
	ErrUnsupportedGeometry = errors.New("only polygon and rectangle zones are supported")
)

// ZoneSource records how a zone was created
type ZoneSource string

const (
	SourceDrawn  ZoneSource = "drawn"
	SourceManual ZoneSource = "manual"
)

// Zone is one polygon pending submission
type Zone struct {
	ID      int              `json:"id"`
	Source  ZoneSource       `json:"source"`
	Label   string           `json:"label"`
	Feature *geojson.Feature `json:"feature"`
}

// Mark captures the zones present at a point in time so exactly those can be
// discarded later without touching zones added afterwards
type Mark struct {
	epoch uint64
	ids   map[int]struct{}
}

// Len returns the number of zones captured by the mark
func (m Mark) Len() int { return len(m.ids) }

// Builder holds the operator's zones. It never touches the network.
type Builder struct {
	mu       sync.Mutex
	zones    []Zone
	nextID   int
	epoch    uint64 // bumped on Clear so stale marks discard nothing
	onChange func([]Zone)
}

// NewBuilder returns an empty zone builder
func NewBuilder() *Builder {
	return &Builder{nextID: 1}
}

// SetOnChange registers a callback invoked with the zone list after every mutation
func (b *Builder) SetOnChange(fn func([]Zone)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onChange = fn
}

// RectangleAround builds the closed 5-point ring approximating a circle of
// radiusKm around (lat, lon)
func RectangleAround(lat, lon, radiusKm float64) (orb.Polygon, error) {
	if !finite(lat) || !finite(lon) || !finite(radiusKm) {
		return nil, ErrInvalidCoordinate
	}
	if math.Abs(lat) >= 90 {
		return nil, ErrPolarLatitude
	}
	if radiusKm <= 0 {
		return nil, ErrInvalidRadius
	}

	latOffset := radiusKm * DegreesPerKm
	lonOffset := (radiusKm * DegreesPerKm) / math.Cos(lat*(math.Pi/180))

	minLon, maxLon := lon-lonOffset, lon+lonOffset
	minLat, maxLat := lat-latOffset, lat+latOffset

	ring := orb.Ring{
		{minLon, minLat},
		{minLon, maxLat},
		{maxLon, maxLat},
		{maxLon, minLat},
		{minLon, minLat},
	}
	return orb.Polygon{ring}, nil
}

// AddManual parses operator-entered coordinates and appends the resulting
// rectangle. Inputs that do not parse are rejected without mutation.
func (b *Builder) AddManual(latText, lonText, radiusText string) (Zone, error) {
	lat, err1 := parseNumber(latText)
	lon, err2 := parseNumber(lonText)
	radius, err3 := parseNumber(radiusText)
	if err := errors.Join(err1, err2, err3); err != nil {
		return Zone{}, ErrInvalidCoordinate
	}
	return b.AddCircle(lat, lon, radius)
}

// AddCircle appends the rectangle around (lat, lon) with the given radius
func (b *Builder) AddCircle(lat, lon, radiusKm float64) (Zone, error) {
	poly, err := RectangleAround(lat, lon, radiusKm)
	if err != nil {
		return Zone{}, err
	}
	return b.add(SourceManual, naming.CircleLabel(lat, lon, radiusKm), poly), nil
}

// AddDrawn appends a zone from a draw event's GeoJSON Feature
func (b *Builder) AddDrawn(raw []byte) (Zone, error) {
	f, err := geojson.UnmarshalFeature(raw)
	if err != nil {
		return Zone{}, fmt.Errorf("failed to parse drawn feature: %w", err)
	}
	return b.AddFeature(f)
}

// AddFeature appends a drawn zone. Only polygon geometries are accepted;
// rectangles arrive from the map as polygons.
func (b *Builder) AddFeature(f *geojson.Feature) (Zone, error) {
	if f == nil || f.Geometry == nil {
		return Zone{}, ErrUnsupportedGeometry
	}
	poly, ok := f.Geometry.(orb.Polygon)
	if !ok || len(poly) == 0 || len(poly[0]) < 4 {
		return Zone{}, ErrUnsupportedGeometry
	}
	bound := poly.Bound()
	label := naming.BoundsLabel(bound.Min.Lat(), bound.Min.Lon(), bound.Max.Lat(), bound.Max.Lon())
	return b.add(SourceDrawn, label, poly.Clone()), nil
}

func (b *Builder) add(source ZoneSource, label string, poly orb.Polygon) Zone {
	b.mu.Lock()
	zone := Zone{
		ID:      b.nextID,
		Source:  source,
		Label:   label,
		Feature: geojson.NewFeature(poly),
	}
	b.nextID++
	b.zones = append(b.zones, zone)
	snapshot, cb := b.snapshotLocked(), b.onChange
	b.mu.Unlock()

	if cb != nil {
		cb(snapshot)
	}
	return zone
}

// Remove deletes a single zone by id
func (b *Builder) Remove(id int) bool {
	b.mu.Lock()
	found := false
	kept := b.zones[:0:0]
	for _, z := range b.zones {
		if z.ID == id {
			found = true
			continue
		}
		kept = append(kept, z)
	}
	b.zones = kept
	snapshot, cb := b.snapshotLocked(), b.onChange
	b.mu.Unlock()

	if found && cb != nil {
		cb(snapshot)
	}
	return found
}

// Clear removes every zone
func (b *Builder) Clear() {
	b.mu.Lock()
	b.zones = nil
	b.epoch++
	cb := b.onChange
	b.mu.Unlock()

	if cb != nil {
		cb([]Zone{})
	}
}

// Zones returns a copy of the current zones in insertion order
func (b *Builder) Zones() []Zone {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshotLocked()
}

// Len returns the number of zones
func (b *Builder) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.zones)
}

// Mark captures the current zones together with their FeatureCollection
func (b *Builder) Mark() (Mark, []Zone) {
	b.mu.Lock()
	defer b.mu.Unlock()

	m := Mark{epoch: b.epoch, ids: make(map[int]struct{}, len(b.zones))}
	for _, z := range b.zones {
		m.ids[z.ID] = struct{}{}
	}
	return m, b.snapshotLocked()
}

// DiscardMarked removes the zones captured by m. Zones added after the mark
// are kept; a mark taken before the last Clear discards nothing.
func (b *Builder) DiscardMarked(m Mark) {
	b.mu.Lock()
	if m.epoch != b.epoch {
		b.mu.Unlock()
		return
	}
	kept := make([]Zone, 0, len(b.zones))
	for _, z := range b.zones {
		if _, captured := m.ids[z.ID]; !captured {
			kept = append(kept, z)
		}
	}
	b.zones = kept
	snapshot, cb := b.snapshotLocked(), b.onChange
	b.mu.Unlock()

	if cb != nil {
		cb(snapshot)
	}
}

func (b *Builder) snapshotLocked() []Zone {
	out := make([]Zone, len(b.zones))
	copy(out, b.zones)
	return out
}

// FeatureCollection builds the submission payload: one feature per zone,
// geometry only, properties left empty
func FeatureCollection(zones []Zone) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, z := range zones {
		if z.Feature == nil || z.Feature.Geometry == nil {
			continue
		}
		fc.Append(geojson.NewFeature(orb.Clone(z.Feature.Geometry)))
	}
	return fc
}

func parseNumber(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if !finite(v) {
		return 0, ErrInvalidCoordinate
	}
	return v, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
