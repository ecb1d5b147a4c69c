// 版权所有 2025 AgriRAG Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 migration 管理品种标准数值库（breed_standards 表）的 schema 版本。

各方言（postgres/mysql/sqlite）的 SQL 迁移文件经 go:embed 打包进
二进制，部署不携带迁移目录。Migrator 基于 golang-migrate 提供
Up/Rollback/Reset/Goto/Force 与版本、状态查询；CLI 把这些操作
包装成 agrirag migrate 子命令的终端输出。

连接入口有二：OpenFromDatabaseConfig 复用应用的数据库配置，
OpenFromURL 直接接收方言名与连接 URL（运维脚本用）。
*/
package migration
