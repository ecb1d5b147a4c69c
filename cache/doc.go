// 版权所有 2025 AgriRAG Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 cache 提供检索结果的 Redis 缓存层。

# 概述

完整的检索流水线（向量化、双路检索、融合、精排）对重复问题
是纯浪费。本包把最终候选列表按查询缓存，命中时整条流水线被
跳过。

两级查找：

 1. 精确命中：规范化查询文本的哈希作为键。
 2. 语义命中：精确未中时，以查询向量对缓存内全部已存查询向量
    求余弦相似度，超过阈值（默认 0.85）即复用相近问题的结果。

缓存永远只是加速：Redis 不可用、序列化失败、数据损坏一律按
未命中处理并记日志，不向调用方冒错。大条目在落库前做 gzip
压缩。
*/
package cache
