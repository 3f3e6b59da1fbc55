package feishu

import (
	"context"
	"encoding/json"
	"fmt"
)

// =============================================================================
// 消息卡片服务 — 发送飞书交互式消息卡片
// 提供MRP运行结果的群通知卡片模板
// =============================================================================

// SendCard 向群聊发送消息卡片
// chatID: 群聊ID
// card: 交互式卡片内容
func (c *FeishuClient) SendCard(ctx context.Context, chatID string, card InteractiveCard) error {
	return c.sendCard(ctx, "chat_id", chatID, card)
}

// SendUserCard 向个人发送消息卡片
// userID: 用户ID（open_id）
// card: 交互式卡片内容
func (c *FeishuClient) SendUserCard(ctx context.Context, userID string, card InteractiveCard) error {
	return c.sendCard(ctx, "open_id", userID, card)
}

// sendCard 发送消息卡片的内部实现
func (c *FeishuClient) sendCard(ctx context.Context, idType, id string, card InteractiveCard) error {
	// 将卡片序列化为JSON字符串
	cardBytes, err := json.Marshal(card)
	if err != nil {
		return fmt.Errorf("序列化卡片内容失败: %w", err)
	}

	// 构造请求体
	reqBody := map[string]interface{}{
		"receive_id_type": idType,
		"receive_id":      id,
		"msg_type":        "interactive",
		"content":         string(cardBytes),
	}

	// 发送消息，query参数通过URL传递
	path := fmt.Sprintf("/open-apis/im/v1/messages?receive_id_type=%s", idType)

	var resp SendMessageResponse
	if err := c.doRequest(ctx, "POST", path, reqBody, &resp); err != nil {
		return fmt.Errorf("发送消息卡片失败: %w", err)
	}

	return nil
}

// =============================================================================
// 预设卡片模板 — MRP运行通知卡片
// =============================================================================

// NewMRPRunCompletedCard 创建MRP运行完成通知卡片
// runCode: 运行编号
// horizonDays: 计划期天数
// ordersProcessed/shortagesFound/plannedOrdersCreated/exceptionCount: 运行统计
func NewMRPRunCompletedCard(runCode string, horizonDays, ordersProcessed, shortagesFound, plannedOrdersCreated, exceptionCount int) InteractiveCard {
	// 有异常时用橙色提醒
	template := "green"
	if exceptionCount > 0 {
		template = "orange"
	}

	return InteractiveCard{
		Config: &CardConfig{WideScreenMode: true},
		Header: &CardHeader{
			Title:    CardText{Tag: "plain_text", Content: "📦 MRP运行完成"},
			Template: template,
		},
		Elements: []CardElement{
			{
				Tag: "div",
				Fields: []CardField{
					{IsShort: true, Text: CardText{Tag: "lark_md", Content: fmt.Sprintf("**运行编号**\n%s", runCode)}},
					{IsShort: true, Text: CardText{Tag: "lark_md", Content: fmt.Sprintf("**计划期**\n%d天", horizonDays)}},
					{IsShort: true, Text: CardText{Tag: "lark_md", Content: fmt.Sprintf("**处理需求**\n%d条", ordersProcessed)}},
					{IsShort: true, Text: CardText{Tag: "lark_md", Content: fmt.Sprintf("**短缺产品**\n%d个", shortagesFound)}},
					{IsShort: true, Text: CardText{Tag: "lark_md", Content: fmt.Sprintf("**生成计划订单**\n%d条", plannedOrdersCreated)}},
					{IsShort: true, Text: CardText{Tag: "lark_md", Content: fmt.Sprintf("**运行异常**\n%d条", exceptionCount)}},
				},
			},
			{Tag: "hr"},
			{
				Tag: "note",
				Elements: []CardElement{
					{Tag: "plain_text", Content: "请在计划工作台查看并确认计划订单"},
				},
			},
		},
	}
}

// NewMRPRunFailedCard 创建MRP运行失败通知卡片
// runCode: 运行编号
// errMessage: 失败原因
func NewMRPRunFailedCard(runCode, errMessage string) InteractiveCard {
	return InteractiveCard{
		Config: &CardConfig{WideScreenMode: true},
		Header: &CardHeader{
			Title:    CardText{Tag: "plain_text", Content: "❌ MRP运行失败"},
			Template: "red",
		},
		Elements: []CardElement{
			{
				Tag: "div",
				Fields: []CardField{
					{IsShort: true, Text: CardText{Tag: "lark_md", Content: fmt.Sprintf("**运行编号**\n%s", runCode)}},
				},
			},
			{
				Tag:  "div",
				Text: &CardText{Tag: "lark_md", Content: fmt.Sprintf("**失败原因**\n%s", errMessage)},
			},
			{Tag: "hr"},
			{
				Tag: "note",
				Elements: []CardElement{
					{Tag: "plain_text", Content: "请排查原因后重新发起运行"},
				},
			},
		},
	}
}
