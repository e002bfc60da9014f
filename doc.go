// Package workflow 提供任务调度 worker 运行时的工作流上下文。
//
// 同一个工作流实例的多个节点（包括并行分支）共享一个 WorkflowContext：
//   - 初始参数：实例启动时传入的 json object, value 统一转成字符串, 构造后只读
//   - 追加数据：节点执行过程中写入, value 为 json 序列化后的字符串, 只能新增或覆盖
//   - 阈值控制：追加的条目数和 key/value 长度受配置限制, 超过限制只打warn日志, 不影响节点执行
//   - 并发安全：并行分支可以同时追加, 条目数上限在并发下也不会被突破
//   - 快照：可以通过 ContextService 保存到数据库（GORM）, 使用本地锁或 Redis 锁避免并发覆盖
//
// 基础使用示例:
//
//	package main
//
//	import (
//	    "github.com/blingmoon/simple-worker/workflow"
//	)
//
//	func main() {
//	    // 1. 加载配置, 阈值可以运行时热更新
//	    cfg, _ := workflow.LoadWorkerConfig("worker.yaml")
//	    limits := workflow.NewDynamicWorkerConfig(cfg)
//
//	    // 2. 创建工作流上下文, 解析失败时初始参数为空, 不会返回错误
//	    wfContext := workflow.NewWorkflowContext(1001, `{"order_id":"ORDER-001","amount":2}`,
//	        workflow.WithContextLimits(limits),
//	    )
//
//	    // 3. 节点读取初始参数, 追加自己的结果
//	    orderID := wfContext.FetchWorkflowContext()["order_id"]
//	    wfContext.AppendData("review", map[string]any{"order_id": orderID, "pass": true})
//
//	    // 4. 下游节点读取追加的数据
//	    review, _ := wfContext.GetAppendedData("review")
//	    _ = review // {"order_id":"ORDER-001","pass":true}
//	}
//
// 配置项（yaml / 环境变量）：
//
//	max_appended_wf_context_length  SIMPLE_WORKER_MAX_APPENDED_WF_CONTEXT_LENGTH  默认 8192
//	max_appended_wf_context_size    SIMPLE_WORKER_MAX_APPENDED_WF_CONTEXT_SIZE    默认 16
//	log.type                        SIMPLE_WORKER_LOG_TYPE                        1在线 2本地 3标准输出 999不输出
//	log.path                        SIMPLE_WORKER_LOG_PATH
//
// 更多示例请参考 examples 目录
package workflow
