// 版权所有 2025 AgriRAG Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 database 管理品种标准数值库的 GORM 连接池。

Pool 持有 GORM 实例与底层 sql.DB，套用 PoolConfig 的连接数与
生命周期参数，并可选启动后台健康探测。服务端用 Pool.DB()
装配结构化检索、用 Ping 支撑就绪检查、关停时统一 Close。
PoolConfigFrom 从顶层数据库配置派生参数，缺省项回落默认值；
Snapshot 输出瞬时连接池统计。
*/
package database
