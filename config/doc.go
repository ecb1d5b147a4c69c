// Package config 提供检索引擎的配置管理功能。
//
// 以默认值 → YAML 文件 → 环境变量的优先级加载完整配置，
// 覆盖服务、三类存储、向量化、精排、路由与遥测各节。
package config
