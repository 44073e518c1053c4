package aggregate

import (
	"sort"

	"envistream/internal/types"
)

// Key columns present in every aggregated table by construction.
const (
	colEntityID   = "entity_id"
	colHourBucket = "hour_bucket_utc"
)

// Default minimum non-null coverage fractions for critical columns.
const (
	weatherCriticalCoverage    = 0.95
	airQualityCriticalCoverage = 0.90
)

// WeatherContract returns the versioned schema contract for the aggregated
// weather table.
func WeatherContract() types.SchemaContract {
	return types.SchemaContract{
		Vendor: types.VendorWeather,
		Columns: map[string]types.ColumnType{
			colEntityID:             types.ColumnString,
			colHourBucket:           types.ColumnTimestamp,
			types.ColTempAvg:        types.ColumnFloat64,
			types.ColTempHigh:       types.ColumnFloat64,
			types.ColTempLow:        types.ColumnFloat64,
			types.ColWindspeedAvg:   types.ColumnFloat64,
			types.ColWindgustAvg:    types.ColumnFloat64,
			types.ColDewptAvg:       types.ColumnFloat64,
			types.ColPressureMax:    types.ColumnFloat64,
			types.ColPressureMin:    types.ColumnFloat64,
			types.ColPrecipRate:     types.ColumnFloat64,
			types.ColPrecipTotal:    types.ColumnFloat64,
			types.ColHumidityAvg:    types.ColumnFloat64,
			types.ColSolarRadiation: types.ColumnFloat64,
			types.ColUVHigh:         types.ColumnFloat64,
		},
		Critical: map[string]float64{
			types.ColTempAvg:      weatherCriticalCoverage,
			types.ColHumidityAvg:  weatherCriticalCoverage,
			types.ColWindspeedAvg: weatherCriticalCoverage,
		},
	}
}

// AirQualityContract returns the versioned schema contract for the aggregated
// air-quality table.
func AirQualityContract() types.SchemaContract {
	return types.SchemaContract{
		Vendor: types.VendorAirQuality,
		Columns: map[string]types.ColumnType{
			colEntityID:       types.ColumnString,
			colHourBucket:     types.ColumnTimestamp,
			types.ColPM25:        types.ColumnFloat64,
			types.ColPM10:        types.ColumnFloat64,
			types.ColCO2:         types.ColumnFloat64,
			types.ColVOC:         types.ColumnFloat64,
			types.ColTemperature: types.ColumnFloat64,
			types.ColHumidity:    types.ColumnFloat64,
		},
		Critical: map[string]float64{
			types.ColPM25: airQualityCriticalCoverage,
			types.ColPM10: airQualityCriticalCoverage,
		},
	}
}

// Validate checks an aggregated table against a schema contract:
//
//  1. Every contract column is present; missing columns are reported, extra
//     columns are tolerated and merely noted.
//  2. Each present column's runtime type is compatible with the declared type
//     under normalization (float32/float64 equivalent, string/object
//     equivalent).
//  3. Each critical column's non-null coverage meets the contract minimum.
//
// The report is advisory: Validate never mutates the table, and callers
// decide whether to reject, warn, or proceed.
func Validate(table types.Table, contract types.SchemaContract) types.ValidationReport {
	var report types.ValidationReport

	present := presentColumns(table)

	// Presence and type compatibility.
	for name, want := range contract.Columns {
		got, ok := present[name]
		if !ok {
			report.MissingColumns = append(report.MissingColumns, name)
			continue
		}
		if !got.Compatible(want) {
			report.TypeMismatches = append(report.TypeMismatches, types.TypeMismatch{
				Column: name,
				Want:   want,
				Got:    got,
			})
		}
	}
	for name := range present {
		if _, ok := contract.Columns[name]; !ok {
			report.ExtraColumns = append(report.ExtraColumns, name)
		}
	}

	// Coverage for critical columns. A critical column that is missing
	// entirely is already reported above; coverage applies to present ones.
	for name, threshold := range contract.Critical {
		if _, ok := present[name]; !ok {
			continue
		}
		coverage := columnCoverage(table, name)
		if coverage < threshold {
			report.LowCoverage = append(report.LowCoverage, types.CoverageFinding{
				Column:    name,
				Coverage:  coverage,
				Threshold: threshold,
			})
		}
	}

	sort.Strings(report.MissingColumns)
	sort.Strings(report.ExtraColumns)
	sort.Slice(report.TypeMismatches, func(i, j int) bool {
		return report.TypeMismatches[i].Column < report.TypeMismatches[j].Column
	})
	sort.Slice(report.LowCoverage, func(i, j int) bool {
		return report.LowCoverage[i].Column < report.LowCoverage[j].Column
	})

	return report
}

// presentColumns derives the runtime column set of a table: the key columns,
// every metric column (float64), and every carried-through meta column
// (string).
func presentColumns(table types.Table) map[string]types.ColumnType {
	present := make(map[string]types.ColumnType)
	if len(table.Records) > 0 {
		present[colEntityID] = types.ColumnString
		present[colHourBucket] = types.ColumnTimestamp
	}
	for i := range table.Records {
		for name := range table.Records[i].Means {
			present[name] = types.ColumnFloat64
		}
		for name := range table.Records[i].Meta {
			if _, ok := present[name]; !ok {
				present[name] = types.ColumnString
			}
		}
	}
	return present
}

// columnCoverage returns the fraction of records with a non-null value in the
// named column. Metric columns count non-nil means; meta columns count
// non-empty strings.
func columnCoverage(table types.Table, name string) float64 {
	if len(table.Records) == 0 {
		return 0
	}
	nonNull := 0
	for i := range table.Records {
		if v, ok := table.Records[i].Means[name]; ok && v != nil {
			nonNull++
			continue
		}
		if v, ok := table.Records[i].Meta[name]; ok && v != "" {
			nonNull++
		}
	}
	return float64(nonNull) / float64(len(table.Records))
}
