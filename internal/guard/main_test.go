package guard

import (
	"testing"

	"go.uber.org/goleak"
)

// カウントダウンのゴルーチンがテスト終了後に残っていないことを確認する。
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
