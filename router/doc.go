// 版权所有 2025 AgriRAG Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 router 将查询分类到三种检索策略之一：结构化数值查表、
知识库搜索或两者混合。

# 分层决策

第一层对数值类指示词与知识类指示词分别计数，一侧领先达到
置信边际（默认 2）即以高置信度胜出；比较类查询（两个品种 +
比较提示词）偏向 hybrid。第一层对同一查询文本完全确定。

第二层在计数平局或无信号时调用 LLM 分类器兜底，输出约束为
同样的三个标签，结果带 TTL 缓存并受速率限制；LLM 不可用或
出错时回退 hybrid（最宽召回），绝不让请求失败。

空查询路由到 hybrid 并记录告警，不抛错。
*/
package router
