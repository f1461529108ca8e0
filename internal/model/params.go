package model

// SearchParams holds all configuration for one search run.
type SearchParams struct {
	Keyword   string  `json:"keyword"`
	Zone      string  `json:"zone,omitempty"`
	CenterLat float64 `json:"center_lat"`
	CenterLng float64 `json:"center_lng"`

	GridSize          int     `json:"grid_size"`
	BlockSizeKM       float64 `json:"block_size_km"`
	MinRadiusMeters   float64 `json:"min_radius_m"`
	RequestsPerSecond int     `json:"requests_per_second"` // also the batch size
	DensePages        int     `json:"dense_pages"`

	RegionPath  string `json:"region_path,omitempty"` // optional GeoJSON polygon
	OutputPath  string `json:"output_path"`
	DBPath      string `json:"db_path,omitempty"`
	CallLogPath string `json:"call_log_path,omitempty"`
}
