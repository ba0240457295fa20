package types

// LogConf contains logging specific configuration
type LogConf struct {
	Level string `ini:"level"`
}

// BenchConf 探测相关参数。
type BenchConf struct {
	TestURL         string  `ini:"test_url"`
	Concurrency     int     `ini:"concurrency"`      // K
	TimeoutSeconds  int     `ini:"timeout_seconds"`  // T
	ByteBudget      int64   `ini:"byte_budget"`      // B
	Smoothing       float64 `ini:"smoothing"`        // ε
	IntervalMinutes int     `ini:"interval_minutes"` // 0 表示只运行一次
}

// HistoryConf 历史存储参数。
type HistoryConf struct {
	Backend  string `ini:"backend"` // "file" 或 "sqlite"
	Path     string `ini:"path"`
	Capacity int    `ini:"capacity"` // N
}

// SelectConf 排序与筛选参数。
type SelectConf struct {
	TopN          int `ini:"top_n"`
	FailThreshold int `ini:"fail_threshold"` // M
}

// SourceConf 代理来源。空路径表示不使用该来源。
type SourceConf struct {
	HTTPFile        string   `ini:"http_file"`
	SOCKS4File      string   `ini:"socks4_file"`
	SOCKS5File      string   `ini:"socks5_file"`
	MixedFile       string   `ini:"mixed_file"`
	RemoteURLs      []string `ini:"remote_urls" delim:","`
	HTMLURL         string   `ini:"html_url"`
	HTMLRowSelector string   `ini:"html_row_selector"`
	HTMLIPColumn    int      `ini:"html_ip_column"`
	HTMLPortColumn  int      `ini:"html_port_column"`
	HTMLScheme      string   `ini:"html_scheme"`
}

// OutputConf 输出文件，相对路径基于 Dir。
type OutputConf struct {
	Dir       string `ini:"dir"`
	Report    string `ini:"report"`
	Top       string `ini:"top"`
	Rotation  string `ini:"rotation"`
	Failed    string `ini:"failed"`
	Responded string `ini:"responded"`
	Working   string `ini:"working"`
	Bad       string `ini:"bad"`
}

// Config 是 proxybench 的统一配置结构体。
// PortSchemes 来自 [scheme_ports] 段，不走 MapTo。
type Config struct {
	LogConf     `ini:"log"`
	BenchConf   `ini:"bench"`
	HistoryConf `ini:"history"`
	SelectConf  `ini:"select"`
	SourceConf  `ini:"source"`
	OutputConf  `ini:"output"`

	PortSchemes map[string]string `ini:"-"`
}
