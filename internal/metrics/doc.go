// 版权所有 2025 AgriRAG Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的检索引擎指标采集，覆盖
HTTP、路由、检索与缓存四大维度。

# 概述

本包通过 Collector 统一注册和记录 Prometheus 指标，使用 promauto
自动注册机制。所有指标按 namespace 隔离，支持多维度 label 分组，
便于 Grafana 等工具进行可视化与告警。

# 核心类型

  - Collector：指标收集器，持有 Counter、Histogram 等 Prometheus
    向量指标，按业务域分组管理。

# 主要能力

  - HTTP 指标：请求总数、请求耗时，按 method/path/status 分组，
    状态码归类为 2xx/3xx/4xx/5xx。
  - 路由指标：判定总数按策略与判定层（keyword/llm/fallback）分组，
    LLM 分类耗时。
  - 检索指标：每路（vector/keyword/structured）的查询耗时、错误数
    与候选数，精排降级计数。
  - 缓存指标：精确命中、语义命中与未命中计数。
*/
package metrics
