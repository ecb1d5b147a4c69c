// 版权所有 2025 AgriRAG Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 engine 是检索管线的编排层，对外暴露单一入口 Retrieve。

# 管线

会话展开 → 实体抽取 → 缓存查询 → 路由 → 结构化/混合检索 →
实体加权与精排 → 异步缓存回写 → 会话更新。

# 降级语义

向量化、精排、缓存与单臂存储失败都静默降级并继续产出结果；
只有向量与关键词两路同时不可用时返回"无可用证据"的显式结果。
请求上下文取消会中止存储调用，缓存回写使用分离上下文，
不随请求取消。
*/
package engine
