// Package telemetry 负责检索服务的 OpenTelemetry 初始化：
// 构建 TracerProvider 与 MeterProvider，经 OTLP gRPC 推送到采集端，
// 并注册为全局 provider 供 HTTP 中间件与管线打点使用。
// 遥测禁用时返回空 Providers，不建立任何出站连接。
package telemetry
