package types

// Telemetry metric names for CloudWatch.
// All components MUST use these constants.
const (
	// Metric Names
	MetricTasksSucceeded = "FetchTasksSucceeded"
	MetricTasksFailed    = "FetchTasksFailed"
	MetricRowsCollected  = "RowsCollected"
	MetricAuthFailure    = "AuthFailure"
	MetricRunDuration    = "FetchRunDurationSeconds"
	MetricEmptyBatch     = "EmptyBatch"
	MetricValidationFail = "ValidationFindings"

	// Dimension Keys
	DimVendor = "Vendor"
	DimRunID  = "RunID"

	// Metric Namespace
	MetricNamespace = "Envistream"
)

// Canonical weather metric column names. The aggregated table and the weather
// schema contract MUST use these exact keys.
const (
	ColTempAvg        = "tempAvg"
	ColTempHigh       = "tempHigh"
	ColTempLow        = "tempLow"
	ColWindspeedAvg   = "windspeedAvg"
	ColWindgustAvg    = "windgustAvg"
	ColDewptAvg       = "dewptAvg"
	ColPressureMax    = "pressureMax"
	ColPressureMin    = "pressureMin"
	ColPrecipRate     = "precipRate"
	ColPrecipTotal    = "precipTotal"
	ColHumidityAvg    = "humidityAvg"
	ColSolarRadiation = "solarRadiationHigh"
	ColUVHigh         = "uvHigh"
)

// Canonical air-quality measurement types. These become column names of the
// flattened record, one per measurement type reported by a device's sensors.
const (
	ColPM25        = "pm2_5"
	ColPM10        = "pm10"
	ColCO2         = "co2"
	ColVOC         = "voc"
	ColTemperature = "temperature"
	ColHumidity    = "humidity"
)

// Meta column keys carried through aggregation without averaging.
const (
	MetaEntityName = "entity_name"
	MetaLatitude   = "lat"
	MetaLongitude  = "lon"
	MetaQCStatus   = "qc_status"
	MetaVendor     = "vendor"
)
