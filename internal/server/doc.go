// 版权所有 2025 AgriRAG Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 server 托管检索 API 的 HTTP 服务生命周期。

Manager 封装 net/http.Server：Start 绑定监听地址后在后台服务，
WaitForShutdown 阻塞到 SIGINT/SIGTERM 或服务异常退出，Shutdown
在配置时限内排空在途请求。停机幂等，异步服务错误经内部通道
汇入 WaitForShutdown。

TLS 由部署侧边缘终结，本包不承担证书管理。
*/
package server
