// 版权所有 2025 AgriRAG Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 store 提供检索引擎的三类存储后端。

# 概述

  - 向量存储：Qdrant REST API（QdrantStore），按查询向量的余弦
    相似度召回文档。
  - 关键词存储：MongoDB $text 全文索引（MongoStore），按词法
    匹配召回文档。
  - 结构化存储：GORM 关系表（StructuredStore），按品种/日龄/
    性别精确查数值指标，是数值问题的权威答案来源。

MemoryStore 在单进程内同时实现向量与关键词两路（BM25 打分），
用于小语料部署与测试，不需要任何外部服务。

所有后端统一产出 retrieval.Candidate，过滤条件统一走
retrieval.Filter / retrieval.StructuredFilter。
*/
package store
