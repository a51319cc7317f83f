package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/parcel-next/internal/logger"
	"github.com/parcel-next/internal/tracking"
)

func main() {
	var (
		apiURL   string
		token    string
		parcelID uint
		doCancel bool
	)
	flag.StringVar(&apiURL, "api", "http://127.0.0.1:8080", "服务地址")
	flag.StringVar(&token, "token", os.Getenv("PN_TOKEN"), "用户 JWT（默认读取 PN_TOKEN）")
	flag.UintVar(&parcelID, "parcel", 0, "包裹 ID")
	flag.BoolVar(&doCancel, "cancel", false, "追踪后发起取消流程")
	flag.Parse()

	logger.Init("release", logger.Options{})
	stdLog := logger.StdLogger()

	if parcelID == 0 {
		stdLog.Fatalf("用法: tracker -parcel <id> [-api <url>] [-token <jwt>] [-cancel]")
	}
	if token == "" {
		stdLog.Fatalf("缺少令牌: 通过 -token 或环境变量 PN_TOKEN 提供")
	}

	client, err := tracking.NewClient(apiURL, tracking.StaticToken(token))
	if err != nil {
		stdLog.Fatalf("创建客户端失败: %v", err)
	}
	session, err := tracking.NewSession(tracking.SessionOptions{
		Client:    client,
		Tokens:    tracking.StaticToken(token),
		Confirmer: terminalConfirmer{},
	})
	if err != nil {
		stdLog.Fatalf("创建会话失败: %v", err)
	}
	defer session.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	session.Track(ctx, parcelID)

	cancelTriggered := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-session.Updates():
		}

		view := session.View()
		if notice := session.TakeNotice(); notice != nil {
			fmt.Printf("[%s] %s\n", notice.Level, notice.Message)
		}

		switch view.State {
		case tracking.StateFailed:
			stdLog.Fatalf("加载包裹失败: %s", view.FailReason)
		case tracking.StateReady:
			printView(view)
			if doCancel && !cancelTriggered && view.CancelState == tracking.CancelIdle && view.ViewModel.IsActionable {
				cancelTriggered = true
				go session.CancelTracked(ctx)
			}
		}
	}
}

func printView(view tracking.SessionView) {
	record := view.Record
	if record == nil {
		return
	}
	live := "offline"
	if view.StreamConnected {
		live = "live"
	}
	fmt.Printf("#%d %s [%s] %s -> %s", record.ID, record.TrackingNo, view.ViewModel.Status, record.PickupLocation, record.Destination)
	if record.PresentLocation != "" {
		fmt.Printf(" (at %s)", record.PresentLocation)
	}
	fmt.Printf(" | distance %s eta %s | cost %s | %s\n",
		view.ViewModel.DistanceText,
		view.ViewModel.ETAText,
		view.ViewModel.ShippingCostText,
		live,
	)
}

// terminalConfirmer 终端交互式确认
type terminalConfirmer struct{}

func (terminalConfirmer) Confirm(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
