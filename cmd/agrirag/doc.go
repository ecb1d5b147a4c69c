// 版权所有 2025 AgriRAG Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
Package main 提供 AgriRAG 检索服务的程序入口。

# 概述

cmd/agrirag 是检索路由引擎的可执行入口，提供 HTTP 检索 API、
数据库迁移、健康检查和版本查询等子命令。程序支持 YAML 配置文件加载、
结构化日志（zap）与 Prometheus 指标采集。

# 核心类型

  - Server           — 主服务器，装配检索管线并管理 HTTP 生命周期
  - Middleware       — HTTP 中间件函数签名 func(http.Handler) http.Handler
  - responseWriter   — 包装 http.ResponseWriter 以捕获状态码

# 主要能力

  - 子命令：serve（启动服务）、migrate（数据库迁移）、version、health
  - 检索 API：POST /v1/retrieve（带会话上下文的混合检索）、
    DELETE /v1/sessions/{id}（清除会话上下文）
  - 中间件链：Recovery、RequestID、SecurityHeaders、RequestLogger、
    OTelTracing、MetricsMiddleware、RateLimiter（基于 IP）
  - 可选外部件按配置接入：Qdrant、MongoDB、Redis、结构化数值库、
    向量化与精排服务；未配置时回退为进程内存储并跳过对应环节
  - /metrics 暴露 Prometheus 指标，/healthz、/readyz 供探针使用
  - 优雅关闭：信号监听 → 关闭 HTTP → 关闭存储与缓存连接
  - 构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置
*/
package main
