package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/ini.v1"
	"proxybench/internal/shared/types"
)

// Default 返回内置默认值，对应最初脚本中的常量。
func Default() *types.Config {
	return &types.Config{
		LogConf: types.LogConf{Level: "info"},
		BenchConf: types.BenchConf{
			TestURL:        "http://ipv4.download.thinkbroadband.com/100MB.zip",
			Concurrency:    200,
			TimeoutSeconds: 10,
			ByteBudget:     10 * 1024 * 1024,
			Smoothing:      0.01,
		},
		HistoryConf: types.HistoryConf{
			Backend:  "file",
			Path:     "proxy_history.csv",
			Capacity: 10,
		},
		SelectConf: types.SelectConf{
			TopN:          150,
			FailThreshold: 3,
		},
		SourceConf: types.SourceConf{
			HTTPFile:       "TestProxies.txt",
			SOCKS4File:     "Socks4.txt",
			SOCKS5File:     "Socks5.txt",
			HTMLIPColumn:   0,
			HTMLPortColumn: 1,
			HTMLScheme:     "http",
		},
		OutputConf: types.OutputConf{
			Dir:       ".",
			Report:    "results.csv",
			Top:       "TopProxies.txt",
			Rotation:  "RotationList.txt",
			Failed:    "failed.txt",
			Responded: "responded.txt",
			Working:   "working-fast.txt",
			Bad:       "bad.txt",
		},
		PortSchemes: DefaultPortSchemes(),
	}
}

// DefaultPortSchemes 是按端口推断协议的默认表。
func DefaultPortSchemes() map[string]string {
	return map[string]string{
		"1080": "socks5",
		"9050": "socks5",
		"9150": "socks5",
		"1081": "socks4",
		"1084": "socks4",
	}
}

// LoadIni 在默认值之上加载 ini 文件。文件不存在时只使用默认值和环境变量。
func LoadIni(cfg *types.Config, fileName string) error {
	if fileName != "" {
		if _, err := os.Stat(fileName); err == nil {
			iniFile, err := ini.Load(fileName)
			if err != nil {
				return err
			}
			if err := iniFile.MapTo(cfg); err != nil {
				return err
			}
			if sec, err := iniFile.GetSection("scheme_ports"); err == nil {
				// 显式配置的端口表整体替换默认表
				cfg.PortSchemes = make(map[string]string)
				for _, key := range sec.Keys() {
					cfg.PortSchemes[key.Name()] = strings.ToLower(key.String())
				}
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}

	overrideFromEnvInt(&cfg.BenchConf.Concurrency, "BENCH_CONCURRENCY")
	overrideFromEnvInt(&cfg.BenchConf.TimeoutSeconds, "BENCH_TIMEOUT_SECONDS")
	overrideFromEnvInt(&cfg.SelectConf.TopN, "BENCH_TOP_N")
	overrideFromEnvString(&cfg.BenchConf.TestURL, "BENCH_TEST_URL")
	overrideFromEnvString(&cfg.LogConf.Level, "LOG_LEVEL")
	return nil
}

// Validate 检查参数之间的约束。
func Validate(cfg *types.Config) error {
	var errs []error
	if cfg.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf("bench.concurrency must be positive, got %d", cfg.Concurrency))
	}
	if cfg.TimeoutSeconds <= 0 {
		errs = append(errs, fmt.Errorf("bench.timeout_seconds must be positive, got %d", cfg.TimeoutSeconds))
	}
	if cfg.ByteBudget <= 0 {
		errs = append(errs, fmt.Errorf("bench.byte_budget must be positive, got %d", cfg.ByteBudget))
	}
	if cfg.Smoothing < 0 {
		errs = append(errs, fmt.Errorf("bench.smoothing must not be negative, got %v", cfg.Smoothing))
	}
	if cfg.TestURL == "" {
		errs = append(errs, errors.New("bench.test_url is empty"))
	}
	if cfg.Capacity <= 0 {
		errs = append(errs, fmt.Errorf("history.capacity must be positive, got %d", cfg.Capacity))
	}
	if cfg.FailThreshold <= 0 || cfg.FailThreshold > cfg.Capacity {
		errs = append(errs, fmt.Errorf("select.fail_threshold must be in [1, %d], got %d", cfg.Capacity, cfg.FailThreshold))
	}
	if cfg.TopN < 0 {
		errs = append(errs, fmt.Errorf("select.top_n must not be negative, got %d", cfg.TopN))
	}
	switch cfg.Backend {
	case "file", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("history.backend must be file or sqlite, got %q", cfg.Backend))
	}
	return errors.Join(errs...)
}

func overrideFromEnvInt(target *int, envName string) {
	envValue := os.Getenv(envName)
	if envValue != "" {
		if intValue, err := strconv.Atoi(envValue); err == nil {
			*target = intValue
		}
	}
}

func overrideFromEnvString(target *string, envName string) {
	if envValue := os.Getenv(envName); envValue != "" {
		*target = envValue
	}
}
