// 版权所有 2025 AgriRAG Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 retrieval 实现自适应混合检索：并发发起向量与关键词两路查询，
用加权倒数排名融合（RRF）合并异构打分，按查询意图自适应调整
融合权重与候选数量，并可选执行去重与实体加权。

# 检索策略

策略由查询文本的词法线索推断：

  - factual：精确数值措辞 → 低融合权重（偏关键词）、较少结果
  - diagnostic：症状/诊断措辞 → 高权重、更多结果、开启去重
  - conceptual：解释/原理措辞 → 最高权重、开启去重
  - balanced：默认均衡

# 失败语义

任一路超时则以可用结果继续融合；任一路出错则以默认参数重试一次；
两路全部失败才向调用方返回错误，其余情况只记录日志并返回部分结果。
*/
package retrieval
