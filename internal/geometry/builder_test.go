package geometry

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const eps = 1e-9

func TestRectangleAround_ClosedSymmetricRing(t *testing.T) {
	cases := []struct {
		lat, lon, radius float64
	}{
		{30.0444, 31.2357, 1},
		{-33.8688, 151.2093, 5},
		{0, 0, 0.25},
		{89.5, -179.9, 2},
		{-89.999, 10, 1},
	}
	for _, c := range cases {
		poly, err := RectangleAround(c.lat, c.lon, c.radius)
		require.NoError(t, err)
		require.Len(t, poly, 1)

		ring := poly[0]
		require.Len(t, ring, 5, "closed ring of 4 corners plus the first repeated")
		assert.Equal(t, ring[0], ring[4])

		latOffset := c.radius * DegreesPerKm
		lonOffset := latOffset / math.Cos(c.lat*math.Pi/180)

		b := ring.Bound()
		assert.InDelta(t, c.lat-latOffset, b.Min.Lat(), eps)
		assert.InDelta(t, c.lat+latOffset, b.Max.Lat(), eps)
		assert.InDelta(t, c.lon-lonOffset, b.Min.Lon(), eps)
		assert.InDelta(t, c.lon+lonOffset, b.Max.Lon(), eps)

		center := b.Center()
		assert.InDelta(t, c.lat, center.Lat(), eps)
		assert.InDelta(t, c.lon, center.Lon(), eps)

		// four distinct corners
		seen := map[orb.Point]bool{}
		for _, p := range ring[:4] {
			seen[p] = true
		}
		assert.Len(t, seen, 4)
	}
}

func TestRectangleAround_CornerOrder(t *testing.T) {
	poly, err := RectangleAround(10, 20, 1)
	require.NoError(t, err)
	ring := poly[0]

	// [minLon,minLat] [minLon,maxLat] [maxLon,maxLat] [maxLon,minLat]
	assert.Equal(t, ring[0].Lon(), ring[1].Lon())
	assert.Less(t, ring[0].Lat(), ring[1].Lat())
	assert.Equal(t, ring[1].Lat(), ring[2].Lat())
	assert.Less(t, ring[1].Lon(), ring[2].Lon())
	assert.Equal(t, ring[2].Lon(), ring[3].Lon())
	assert.Greater(t, ring[2].Lat(), ring[3].Lat())
}

func TestRectangleAround_PolarGuard(t *testing.T) {
	for _, lat := range []float64{90, -90, 90.5, -120} {
		_, err := RectangleAround(lat, 0, 1)
		assert.ErrorIs(t, err, ErrPolarLatitude, "lat=%v", lat)
	}
}

func TestRectangleAround_RejectsNonFinite(t *testing.T) {
	_, err := RectangleAround(math.NaN(), 0, 1)
	assert.ErrorIs(t, err, ErrInvalidCoordinate)
	_, err = RectangleAround(0, math.Inf(1), 1)
	assert.ErrorIs(t, err, ErrInvalidCoordinate)
	_, err = RectangleAround(0, 0, math.NaN())
	assert.ErrorIs(t, err, ErrInvalidCoordinate)
}

func TestRectangleAround_RejectsNonPositiveRadius(t *testing.T) {
	_, err := RectangleAround(0, 0, 0)
	assert.ErrorIs(t, err, ErrInvalidRadius)
	_, err = RectangleAround(0, 0, -2)
	assert.ErrorIs(t, err, ErrInvalidRadius)
}

func TestAddManual(t *testing.T) {
	b := NewBuilder()

	zone, err := b.AddManual(" 30.0444", "31.2357 ", "2")
	require.NoError(t, err)
	assert.Equal(t, SourceManual, zone.Source)
	assert.Equal(t, "30.0444N 31.2357E ±2km", zone.Label)
	assert.Equal(t, 1, b.Len())

	poly, ok := zone.Feature.Geometry.(orb.Polygon)
	require.True(t, ok)
	assert.Len(t, poly[0], 5)
}

func TestAddManual_InvalidInputDoesNotMutate(t *testing.T) {
	b := NewBuilder()
	calls := 0
	b.SetOnChange(func([]Zone) { calls++ })

	inputs := [][3]string{
		{"", "31", "1"},
		{"abc", "31", "1"},
		{"30", "NaN", "1"},
		{"30", "31", "inf"},
		{"90", "31", "1"},
		{"30", "31", "0"},
	}
	for _, in := range inputs {
		_, err := b.AddManual(in[0], in[1], in[2])
		assert.Error(t, err, "input %v", in)
	}
	assert.Equal(t, 0, b.Len())
	assert.Equal(t, 0, calls)
}

func TestAddDrawn(t *testing.T) {
	b := NewBuilder()
	raw := []byte(`{
		"type": "Feature",
		"properties": {"_leaflet_id": 42},
		"geometry": {"type": "Polygon", "coordinates": [[[1,1],[1,2],[2,2],[2,1],[1,1]]]}
	}`)

	zone, err := b.AddDrawn(raw)
	require.NoError(t, err)
	assert.Equal(t, SourceDrawn, zone.Source)
	assert.Equal(t, 1, b.Len())
}

func TestAddDrawn_RejectsOtherGeometry(t *testing.T) {
	b := NewBuilder()

	_, err := b.AddDrawn([]byte(`{"type":"Feature","properties":{},"geometry":{"type":"Point","coordinates":[1,2]}}`))
	assert.ErrorIs(t, err, ErrUnsupportedGeometry)

	_, err = b.AddDrawn([]byte(`{"type":"Feature","properties":{},"geometry":{"type":"LineString","coordinates":[[1,2],[3,4]]}}`))
	assert.ErrorIs(t, err, ErrUnsupportedGeometry)

	_, err = b.AddDrawn([]byte(`not json`))
	assert.Error(t, err)

	assert.Equal(t, 0, b.Len())
}

func TestClearAndRemove(t *testing.T) {
	b := NewBuilder()
	z1, _ := b.AddCircle(1, 1, 1)
	b.AddCircle(2, 2, 1)

	assert.True(t, b.Remove(z1.ID))
	assert.False(t, b.Remove(z1.ID))
	assert.Equal(t, 1, b.Len())

	b.Clear()
	assert.Equal(t, 0, b.Len())
	assert.Empty(t, b.Zones())
}

func TestDiscardMarked_KeepsZonesAddedLater(t *testing.T) {
	b := NewBuilder()
	b.AddCircle(1, 1, 1)
	b.AddCircle(2, 2, 1)

	mark, captured := b.Mark()
	assert.Equal(t, 2, mark.Len())
	assert.Len(t, captured, 2)

	late, _ := b.AddCircle(3, 3, 1)
	b.DiscardMarked(mark)

	zones := b.Zones()
	require.Len(t, zones, 1)
	assert.Equal(t, late.ID, zones[0].ID)
}

func TestDiscardMarked_StaleAfterClear(t *testing.T) {
	b := NewBuilder()
	b.AddCircle(1, 1, 1)
	mark, _ := b.Mark()

	b.Clear()
	fresh, _ := b.AddCircle(5, 5, 1)
	b.DiscardMarked(mark)

	zones := b.Zones()
	require.Len(t, zones, 1)
	assert.Equal(t, fresh.ID, zones[0].ID)
}

func TestFeatureCollection_OneFeaturePerZoneGeometryOnly(t *testing.T) {
	b := NewBuilder()
	_, err := b.AddDrawn([]byte(`{"type":"Feature","properties":{"color":"blue"},"geometry":{"type":"Polygon","coordinates":[[[1,1],[1,2],[2,2],[2,1],[1,1]]]}}`))
	require.NoError(t, err)
	b.AddCircle(10, 10, 3)
	b.AddCircle(-10, 40, 1)

	fc := FeatureCollection(b.Zones())
	require.Len(t, fc.Features, 3)
	for _, f := range fc.Features {
		assert.Empty(t, f.Properties)
		_, ok := f.Geometry.(orb.Polygon)
		assert.True(t, ok)
	}

	data, err := json.Marshal(fc)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "FeatureCollection", decoded["type"])

	parsed, err := geojson.UnmarshalFeatureCollection(data)
	require.NoError(t, err)
	assert.Len(t, parsed.Features, 3)
}

func TestOnChangeReceivesSnapshots(t *testing.T) {
	b := NewBuilder()
	var lengths []int
	b.SetOnChange(func(z []Zone) { lengths = append(lengths, len(z)) })

	b.AddCircle(1, 1, 1)
	b.AddCircle(2, 2, 1)
	b.Clear()

	assert.Equal(t, []int{1, 2, 0}, lengths)
}
