// 版权所有 2025 AgriRAG Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 conversation 维护多轮会话状态并展开省略式追问。

# 概述

用户的追问经常省略早前轮次已给出的实体（"and for females?"、
"what about at 42 days?"）。本包按会话记录最近提到的品种、日龄、
性别与指标，检测省略式查询，并将其展开为自包含查询后再进入路由。

# 核心类型

  - Context：单会话可变状态，字段只在当前查询提供新值时被覆盖，
    缺失信号永远回退到最近已知值；每次更新前将旧状态压入只追加
    的历史记录。
  - Manager：会话表，按会话 ID 隔离，并发安全；Reset 显式清空。
  - Resolver：省略检测（IsCoreference）、实体抽取（ExtractEntities）
    与查询展开（Expand）。

# 展开顺序

合成查询按 指标 → 性别 → 品种 → 日龄限定 的顺序拼装；
查询与上下文均无任何实体时展开是空操作而非错误。
*/
package conversation
