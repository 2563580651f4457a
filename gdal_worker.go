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
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// ==================== 批量导入 ====================

// ImportJob 单个文件的导入任务与结果
type ImportJob struct {
	ID   string
	Path string
	// Map 导入得到的地图，每个任务独占
	Map      *Map
	Stats    ImportStats
	Warnings []string
	Err      error
	Duration time.Duration
}

// BatchImport 并发导入多个文件，每个文件使用独立的地图与导入会话
// 结果顺序与paths一致；ctx取消后尚未开始的任务返回ctx.Err()
func BatchImport(ctx context.Context, pool *GDALWorkerPool, paths []string, options ImportOptions) []*ImportJob {
	if pool == nil {
		pool = GetGDALPool()
	}
	jobs := make([]*ImportJob, len(paths))
	var wg sync.WaitGroup
	for i, path := range paths {
		job := &ImportJob{ID: uuid.New().String(), Path: path}
		jobs[i] = job
		wg.Add(1)
		go func() {
			defer wg.Done()
			job.Err = pool.Execute(ctx, func() error {
				return runImportJob(ctx, job, options)
			})
		}()
	}
	wg.Wait()

	failed := 0
	for _, job := range jobs {
		if job.Err != nil {
			failed++
		}
	}
	log.Infof("批量导入完成: %d 个文件, %d 个失败", len(jobs), failed)
	return jobs
}

// runImportJob 在工作槽内执行一个导入任务
func runImportJob(ctx context.Context, job *ImportJob, options ImportOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()
	defer func() { job.Duration = time.Since(start) }()

	job.Map = NewMap()
	importer := NewOgrFileImport(job.Path, job.Map, options)
	err := importer.Import()
	job.Stats = importer.Stats()
	job.Warnings = importer.Warnings()
	if err != nil {
		log.Warnf("任务 %s 导入 %s 失败: %v", job.ID, job.Path, err)
		return err
	}
	log.Debugf("任务 %s 导入 %s 用时 %v", job.ID, job.Path, time.Since(start))
	return nil
}
