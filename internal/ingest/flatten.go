package ingest

import (
	"strconv"
	"time"

	"envistream/internal/types"
)

// Vendor payload shapes. Each vendor gets one explicit record type and a pure
// flatten function; unknown or missing fields are explicit optional pointers
// rather than silently-absent map keys.

// weatherAPIResponse is the top-level weather history payload.
type weatherAPIResponse struct {
	Observations []weatherObservation `json:"observations"`
}

// weatherObservation mirrors one element of the vendor's observations array:
// scalar fields plus a nested "metric" sub-object carrying the readings in
// the requested unit system.
type weatherObservation struct {
	StationID  string     `json:"stationID"`
	ObsTimeUTC *time.Time `json:"obsTimeUtc"`
	Lat        *float64   `json:"lat"`
	Lon        *float64   `json:"lon"`
	QCStatus   *int       `json:"qcStatus"`

	HumidityAvg        *float64 `json:"humidityAvg"`
	SolarRadiationHigh *float64 `json:"solarRadiationHigh"`
	UVHigh             *float64 `json:"uvHigh"`

	// Outer duplicates of metric-block fields. Some station firmware emits
	// these at the top level in imperial units; the metric block wins on
	// collision because it carries the requested unit system.
	TempAvg      *float64 `json:"tempAvg"`
	WindspeedAvg *float64 `json:"windspeedAvg"`

	Metric weatherMetrics `json:"metric"`
}

// weatherMetrics is the nested "metric" sub-object whose keys are merged up
// into the flat record.
type weatherMetrics struct {
	TempAvg      *float64 `json:"tempAvg"`
	TempHigh     *float64 `json:"tempHigh"`
	TempLow      *float64 `json:"tempLow"`
	WindspeedAvg *float64 `json:"windspeedAvg"`
	WindgustAvg  *float64 `json:"windgustAvg"`
	DewptAvg     *float64 `json:"dewptAvg"`
	PressureMax  *float64 `json:"pressureMax"`
	PressureMin  *float64 `json:"pressureMin"`
	PrecipRate   *float64 `json:"precipRate"`
	PrecipTotal  *float64 `json:"precipTotal"`
}

// flattenWeatherObservation converts one observation element into a flat
// record. Returns nil for elements that cannot produce a usable row (missing
// timestamp); the rest of the response is still processed.
func flattenWeatherObservation(entityID string, obs weatherObservation) *types.RawObservation {
	if obs.ObsTimeUTC == nil || obs.ObsTimeUTC.IsZero() {
		return nil
	}

	values := map[string]*float64{
		types.ColHumidityAvg:    obs.HumidityAvg,
		types.ColSolarRadiation: obs.SolarRadiationHigh,
		types.ColUVHigh:         obs.UVHigh,
		types.ColTempAvg:        obs.TempAvg,
		types.ColWindspeedAvg:   obs.WindspeedAvg,
		types.ColTempHigh:       obs.Metric.TempHigh,
		types.ColTempLow:        obs.Metric.TempLow,
		types.ColWindgustAvg:    obs.Metric.WindgustAvg,
		types.ColDewptAvg:       obs.Metric.DewptAvg,
		types.ColPressureMax:    obs.Metric.PressureMax,
		types.ColPressureMin:    obs.Metric.PressureMin,
		types.ColPrecipRate:     obs.Metric.PrecipRate,
		types.ColPrecipTotal:    obs.Metric.PrecipTotal,
	}

	// Merge the metric block over the outer duplicates: nested wins.
	if obs.Metric.TempAvg != nil {
		values[types.ColTempAvg] = obs.Metric.TempAvg
	}
	if obs.Metric.WindspeedAvg != nil {
		values[types.ColWindspeedAvg] = obs.Metric.WindspeedAvg
	}

	meta := make(map[string]string, 4)
	meta[types.MetaVendor] = string(types.VendorWeather)
	if obs.Lat != nil {
		meta[types.MetaLatitude] = strconv.FormatFloat(*obs.Lat, 'f', -1, 64)
	}
	if obs.Lon != nil {
		meta[types.MetaLongitude] = strconv.FormatFloat(*obs.Lon, 'f', -1, 64)
	}
	if obs.QCStatus != nil {
		meta[types.MetaQCStatus] = strconv.Itoa(*obs.QCStatus)
	}

	return &types.RawObservation{
		EntityID:  entityID,
		Timestamp: obs.ObsTimeUTC.UTC(),
		Values:    values,
		Meta:      meta,
	}
}

// airQualityElement mirrors one element of the telemetry response list: a
// top-level timestamp and device ID plus a "sensors" array of measurement
// groups.
type airQualityElement struct {
	Timestamp *time.Time         `json:"timestamp"`
	DeviceID  string             `json:"device_id"`
	Sensors   []airQualitySensor `json:"sensors"`
}

type airQualitySensor struct {
	Measurements []airQualityMeasurement `json:"measurements"`
}

type airQualityMeasurement struct {
	Type string                    `json:"type"`
	Data airQualityMeasurementData `json:"data"`
}

type airQualityMeasurementData struct {
	Value     *float64   `json:"value"`
	Timestamp *time.Time `json:"timestamp"`
}

// flattenAirQualityElement converts one response element into a flat record.
// Each measurement type becomes one column. Sensors occasionally
// double-report a type within one element; the reading with the latest inner
// timestamp wins. Returns nil when the element yields zero usable fields.
func flattenAirQualityElement(entityID string, el airQualityElement) *types.RawObservation {
	if el.Timestamp == nil || el.Timestamp.IsZero() {
		return nil
	}

	values := make(map[string]*float64)
	chosen := make(map[string]time.Time)

	for _, sensor := range el.Sensors {
		for _, m := range sensor.Measurements {
			if m.Type == "" {
				continue
			}
			inner := el.Timestamp.UTC()
			if m.Data.Timestamp != nil && !m.Data.Timestamp.IsZero() {
				inner = m.Data.Timestamp.UTC()
			}
			if prev, ok := chosen[m.Type]; ok && !inner.After(prev) {
				continue
			}
			chosen[m.Type] = inner
			values[m.Type] = m.Data.Value
		}
	}

	if len(values) == 0 {
		return nil
	}

	return &types.RawObservation{
		EntityID:  entityID,
		Timestamp: el.Timestamp.UTC(),
		Values:    values,
		Meta: map[string]string{
			types.MetaVendor: string(types.VendorAirQuality),
		},
	}
}
