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
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
)

var (
	ErrNoSuitableSRS         = errors.New("地理数据没有合适的空间参考")
	ErrNoTransformation      = errors.New("无法建立坐标转换")
	ErrTransformFailed       = errors.New("坐标转换失败")
	ErrUnsupportedProjection = errors.New("不支持的投影")
	ErrDriverNotFound        = errors.New("找不到矢量数据驱动")
)

// FileFormatError 导入导出过程中的致命错误
type FileFormatError struct {
	Msg string
	Err error
}

func (e *FileFormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *FileFormatError) Unwrap() error {
	return e.Err
}

// newFileFormatError 创建致命错误
func newFileFormatError(err error, format string, args ...interface{}) *FileFormatError {
	return &FileFormatError{Msg: fmt.Sprintf(format, args...), Err: err}
}

// WarningSink 累积面向用户的警告信息
type WarningSink struct {
	warnings []string
}

// AddWarning 追加一条警告
func (s *WarningSink) AddWarning(msg string) {
	log.Warn(msg)
	s.warnings = append(s.warnings, msg)
}

// Warnings 返回全部警告
func (s *WarningSink) Warnings() []string {
	return s.warnings
}
