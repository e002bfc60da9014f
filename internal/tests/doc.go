// Package tests 是 simple-worker 的集成测试。
//
// 此包位于 internal/ 目录下, 外部项目无法导入。
//
// 测试内容：
//   - 多个 worker 共享同一个数据库和 redis 时上下文快照的保存和恢复
//   - 并行分支追加上下文后快照的一致性
//   - 配置热更新对已存在的上下文生效
//
// 运行测试：
//
//	go test ./internal/tests/...
package tests
