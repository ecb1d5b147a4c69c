// 版权所有 2025 AgriRAG Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 rerank 提供检索候选的交叉编码器精排接入层。

# 概述

混合检索产出的候选顺序来自排名融合，分数只在本次检索内可比。
本包调用外部交叉编码器服务对 (query, document) 逐对打分，给出
跨查询可比的相关性分数，并以该分数重排候选。

精排是增强而非前提：服务超时、出错或返回空结果时，Reranker
原序返回输入候选（截断到 TopN），检索结果永不因精排失败而丢失。

# 核心接口

  - Provider：交叉编码器服务接口，Score 方法对查询与文档列表打分。
  - CohereProvider：接入 Cohere Rerank v2 API 的 Provider 实现。
  - Reranker：带截断与打分缓存的精排封装，降级语义在此层实现。

# 主要能力

  - 长文档按 token 预算截断后再送交服务，降低延迟与计费。
  - (query, document) 打分缓存，重复候选不重复计费。
  - 服务不可用时静默降级为输入顺序。
*/
package rerank
