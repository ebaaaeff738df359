package service

import (
	"context"
	"sync"

	"media-fetch/app/model"
)

// JobQueue 无界 FIFO 任务队列，单消费者阻塞取出。
// 不做去重：同一请求者的第二个任务会作为独立条目排队，运行时会覆盖
// 前者按请求者跟踪的状态，这是按请求者单飞假设下的既定行为。
type JobQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	jobs   []model.Job
	closed bool
}

// NewJobQueue 创建任务队列
func NewJobQueue() *JobQueue {
	q := &JobQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Enqueue 追加任务到队尾
func (q *JobQueue) Enqueue(job model.Job) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.jobs = append(q.jobs, job)
	q.cond.Signal()
}

// Dequeue 取出队首任务，队列为空时阻塞直到有任务、队列关闭或 ctx 取消。
// 第二个返回值为 false 表示不会再有任务。
func (q *JobQueue) Dequeue(ctx context.Context) (model.Job, bool) {
	// ctx 取消时唤醒等待中的消费者
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			q.cond.Broadcast()
		case <-stop:
		}
	}()

	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.jobs) == 0 && !q.closed && ctx.Err() == nil {
		q.cond.Wait()
	}

	if len(q.jobs) == 0 {
		return model.Job{}, false
	}

	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	return job, true
}

// Len 当前排队中的任务数
func (q *JobQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// Close 关闭队列，唤醒阻塞中的消费者
func (q *JobQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}
