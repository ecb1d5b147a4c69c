// 版权所有 2025 AgriRAG Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 embedding 提供查询与文档向量化的服务接入层。

检索引擎只依赖本包的 Provider 接口：EmbedQuery 在检索路径上
把用户问题向量化，EmbedBatch 在建库与语义缓存路径上批量向量化
文本。OpenAIProvider 接入 OpenAI 兼容的 /v1/embeddings 端点，
自建推理服务只要暴露相同协议即可直接复用。

向量化失败不是检索的硬失败：上层在拿不到查询向量时退化为
纯关键词检索。
*/
package embedding
