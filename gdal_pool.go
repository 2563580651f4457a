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
	"context"
	"runtime"
	"sync"
)

// GDALWorkerPool 工作池 - 控制同时进行的导入导出数量
type GDALWorkerPool struct {
	semaphore chan struct{}
	size      int
}

var (
	gdalPool     *GDALWorkerPool
	gdalPoolOnce sync.Once
)

// GetGDALPool 获取全局工作池（单例）
func GetGDALPool() *GDALWorkerPool {
	gdalPoolOnce.Do(func() {
		// 文件解析以CPU为主，按核心数设置
		poolSize := runtime.NumCPU()
		if poolSize < 2 {
			poolSize = 2
		}
		if poolSize > 16 {
			poolSize = 16
		}
		gdalPool = NewGDALWorkerPool(poolSize)
	})
	return gdalPool
}

// NewGDALWorkerPool 创建指定并发数的工作池
func NewGDALWorkerPool(size int) *GDALWorkerPool {
	if size < 1 {
		size = 1
	}
	return &GDALWorkerPool{
		semaphore: make(chan struct{}, size),
		size:      size,
	}
}

// Size 并发上限
func (p *GDALWorkerPool) Size() int {
	return p.size
}

// Acquire 获取工作槽，ctx取消时返回错误
func (p *GDALWorkerPool) Acquire(ctx context.Context) error {
	select {
	case p.semaphore <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release 释放工作槽
func (p *GDALWorkerPool) Release() {
	<-p.semaphore
}

// Execute 在工作池中执行操作
func (p *GDALWorkerPool) Execute(ctx context.Context, fn func() error) error {
	if err := p.Acquire(ctx); err != nil {
		return err
	}
	defer p.Release()
	return fn()
}
