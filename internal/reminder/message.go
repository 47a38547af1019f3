package reminder

import (
	"context"
	"log"
)

// Sink 是消息的投递端（聊天框架的发送接口）。
type Sink interface {
	Send(ctx context.Context, channel, text string) error
}

// MessageJob 每次触发时向 key.Channel 发送 text；投递失败只记日志，下次照常触发。
func MessageJob(sink Sink, key Key, text string) Job {
	return func(ctx context.Context) {
		if err := sink.Send(ctx, key.Channel, text); err != nil {
			log.Printf("[reminder] send %s: %v", key, err)
		}
	}
}
