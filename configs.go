/*
Copyright (C) 2025 [GrainArc]

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as published
by the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/
package OgrMapper

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

var (
	MainConfig     OGRConfig
	mainConfigOnce sync.Once
)

// OGRConfig 矢量数据导入导出配置
type OGRConfig struct {
	XMLName              xml.Name `xml:"config"`
	ClipLayers           bool     `xml:"ogr>clip_layers"`
	SeparateLayers       bool     `xml:"ogr>separate_layers"`
	OneLayerPerSymbol    bool     `xml:"ogr>one_layer_per_symbol"`
	GeoreferencingImport bool     `xml:"ogr>georeferencing_import"`
	UnitType             string   `xml:"ogr>unit_type"`
	LogLevel             string   `xml:"ogr>log_level"`
	DXFCodePage          string   `xml:"ogr>dxf_codepage"`
}

// DefaultOGRConfig 默认配置：裁剪开启，地理参考导入开启，地面单位
func DefaultOGRConfig() OGRConfig {
	return OGRConfig{
		ClipLayers:           true,
		GeoreferencingImport: true,
		UnitType:             "ground",
		LogLevel:             "info",
		DXFCodePage:          "ANSI_936",
	}
}

// ConfigPath 返回配置文件路径，OGR_CONFIG 环境变量优先
func ConfigPath() (string, error) {
	if p := os.Getenv("OGR_CONFIG"); p != "" {
		return p, nil
	}
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("无法获取用户配置目录: %w", err)
	}
	return filepath.Join(configDir, "BoundlessMap", "ogr.xml"), nil
}

// LoadOGRConfig 读取XML配置文件并应用环境变量覆盖
// 配置文件不存在时返回默认配置
func LoadOGRConfig(path string) (OGRConfig, error) {
	cfg := DefaultOGRConfig()

	xmlFile, err := os.Open(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return cfg, fmt.Errorf("打开配置文件失败: %w", err)
		}
	} else {
		defer xmlFile.Close()
		if err := xml.NewDecoder(xmlFile).Decode(&cfg); err != nil {
			return DefaultOGRConfig(), fmt.Errorf("解析配置文件失败: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

// applyEnvOverrides 使用环境变量覆盖配置项
func applyEnvOverrides(cfg *OGRConfig) {
	boolEnv := func(key string, target *bool) {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			return
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			log.Warnf("环境变量 %s 的值无效: %q", key, v)
			return
		}
		*target = b
	}
	boolEnv("OGR_CLIP_LAYERS", &cfg.ClipLayers)
	boolEnv("OGR_SEPARATE_LAYERS", &cfg.SeparateLayers)
	boolEnv("OGR_ONE_LAYER_PER_SYMBOL", &cfg.OneLayerPerSymbol)
	boolEnv("OGR_GEOREFERENCING_IMPORT", &cfg.GeoreferencingImport)
	if v := os.Getenv("OGR_UNIT_TYPE"); v != "" {
		cfg.UnitType = strings.ToLower(v)
	}
	if v := os.Getenv("OGR_LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v := os.Getenv("OGR_DXF_CODEPAGE"); v != "" {
		cfg.DXFCodePage = strings.ToUpper(v)
	}
}

// loadMainConfig 加载全局配置（.env + XML），只执行一次
func loadMainConfig() {
	mainConfigOnce.Do(func() {
		_ = godotenv.Load(".env")
		path, err := ConfigPath()
		if err != nil {
			log.Warn(err)
			MainConfig = DefaultOGRConfig()
			applyEnvOverrides(&MainConfig)
			return
		}
		cfg, err := LoadOGRConfig(path)
		if err != nil {
			log.Warn(err)
		}
		MainConfig = cfg
	})
}

// ImportOption 导入选项
type ImportOption int

const (
	ClipLayers ImportOption = iota
	SeparateLayers
	GeoreferencingImport
)

// ExportOption 导出选项
type ExportOption int

const (
	OneLayerPerSymbol ExportOption = iota
)

// GdalManager 配置与驱动信息入口
type GdalManager struct {
	cfg OGRConfig
}

// NewGdalManager 使用全局配置创建管理器
func NewGdalManager() *GdalManager {
	loadMainConfig()
	return &GdalManager{cfg: MainConfig}
}

// NewGdalManagerWithConfig 使用指定配置创建管理器
func NewGdalManagerWithConfig(cfg OGRConfig) *GdalManager {
	return &GdalManager{cfg: cfg}
}

// Config 返回当前配置副本
func (m *GdalManager) Config() OGRConfig {
	return m.cfg
}

// Configure 应用日志级别与DXF默认代码页
func (m *GdalManager) Configure() {
	if m.cfg.DXFCodePage != "" {
		if err := SetDXFCodePage(m.cfg.DXFCodePage); err != nil {
			log.Warn(err)
		}
	}
	if m.cfg.LogLevel == "" {
		return
	}
	level, err := log.ParseLevel(m.cfg.LogLevel)
	if err != nil {
		log.Warnf("未知的日志级别: %s", m.cfg.LogLevel)
		return
	}
	log.SetLevel(level)
}

// IsImportOptionEnabled 查询导入选项
func (m *GdalManager) IsImportOptionEnabled(option ImportOption) bool {
	switch option {
	case ClipLayers:
		return m.cfg.ClipLayers
	case SeparateLayers:
		return m.cfg.SeparateLayers
	case GeoreferencingImport:
		return m.cfg.GeoreferencingImport
	}
	return false
}

// SetImportOptionEnabled 设置导入选项
func (m *GdalManager) SetImportOptionEnabled(option ImportOption, enabled bool) {
	switch option {
	case ClipLayers:
		m.cfg.ClipLayers = enabled
	case SeparateLayers:
		m.cfg.SeparateLayers = enabled
	case GeoreferencingImport:
		m.cfg.GeoreferencingImport = enabled
	}
}

// IsExportOptionEnabled 查询导出选项
func (m *GdalManager) IsExportOptionEnabled(option ExportOption) bool {
	if option == OneLayerPerSymbol {
		return m.cfg.OneLayerPerSymbol
	}
	return false
}

// SetExportOptionEnabled 设置导出选项
func (m *GdalManager) SetExportOptionEnabled(option ExportOption, enabled bool) {
	if option == OneLayerPerSymbol {
		m.cfg.OneLayerPerSymbol = enabled
	}
}

// UnitType 返回无参考数据的单位类型
func (m *GdalManager) UnitType() UnitType {
	if m.cfg.UnitType == "paper" {
		return UnitOnPaper
	}
	return UnitOnGround
}

// SupportedVectorImportExtensions 返回可导入的文件扩展名
func (m *GdalManager) SupportedVectorImportExtensions() []string {
	var result []string
	seen := map[string]bool{}
	for _, driver := range registeredDrivers() {
		if !driver.CanOpen {
			continue
		}
		for _, ext := range driver.Extensions {
			if !seen[ext] {
				seen[ext] = true
				result = append(result, ext)
			}
		}
	}
	return result
}

// SupportedVectorExportDrivers 返回可导出的驱动
func (m *GdalManager) SupportedVectorExportDrivers() []*Driver {
	var result []*Driver
	for _, driver := range registeredDrivers() {
		if driver.CanCreate && len(driver.Extensions) > 0 {
			result = append(result, driver)
		}
	}
	return result
}
