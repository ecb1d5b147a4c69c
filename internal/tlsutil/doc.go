// 版权所有 2025 AgriRAG Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

// Package tlsutil 为出站 HTTP 客户端集中管理 TLS 设置。
// 向量化、精排、分类与向量库四类上游都经由这里拿到
// 同一份加固配置：TLS 1.2 起步，只保留 AEAD 密码套件。
package tlsutil
