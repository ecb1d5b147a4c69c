// 版权所有 2025 AgriRAG Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 normalize 提供家禽领域词汇与计量单位的归一化能力。

# 概述

检索管线的各个组件（上下文解析、路由、结构化过滤）需要在同一套
规范词汇上比较查询与语料。本包将多语言的指标叫法（英文/西班牙文）、
品种别名与计量单位（磅/千克/周龄）统一映射到规范形式。

# 核心类型

  - Vocabulary：不可变词汇表，进程启动时从配置构建一次，
    以值传入各组件构造函数，不存在包级可变状态。
  - Normalizer：归一化器，提供指标、品种、性别与单位的规范化方法。
  - Quantity：带单位的数值，统一换算为克与日龄。

# 主要能力

  - 指标归一化：body weight / peso corporal / bw → body_weight。
  - 品种别名：ross / ross308 → Ross 308。
  - 单位换算：lb→g、kg→g、oz→g、周龄→日龄。
  - 自定义词汇：配置可增补或覆盖默认表，构建后不可变。
*/
package normalize
