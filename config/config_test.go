package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoad(t *testing.T) {
	t.Run("从 yaml 文件加载配置", func(t *testing.T) {
		dir := t.TempDir()
		writeConfigFile(t, dir, "gateway.yaml", "app:\n  name: aegis\n  port: 8080\n")

		loader, err := New(&Config{Name: "gateway", Paths: []string{dir}})
		require.NoError(t, err)
		require.NoError(t, loader.Load(context.Background()))

		assert.Equal(t, "aegis", loader.Get("app.name"))

		var cfg struct {
			App struct {
				Name string
				Port int
			}
		}
		require.NoError(t, loader.Unmarshal(&cfg))
		assert.Equal(t, 8080, cfg.App.Port)
	})

	t.Run("UnmarshalKey 反序列化子配置", func(t *testing.T) {
		dir := t.TempDir()
		writeConfigFile(t, dir, "config.yaml", "ratelimit:\n  rate: 10\n  burst: 5\n")

		loader, err := New(&Config{Paths: []string{dir}})
		require.NoError(t, err)
		require.NoError(t, loader.Load(context.Background()))

		var rl struct {
			Rate  float64
			Burst int
		}
		require.NoError(t, loader.UnmarshalKey("ratelimit", &rl))
		assert.Equal(t, float64(10), rl.Rate)
		assert.Equal(t, 5, rl.Burst)
	})

	t.Run("环境变量覆盖文件值", func(t *testing.T) {
		dir := t.TempDir()
		writeConfigFile(t, dir, "config.yaml", "app:\n  name: from-file\n")
		t.Setenv("AEGIS_APP_NAME", "from-env")

		loader, err := New(&Config{Paths: []string{dir}})
		require.NoError(t, err)
		require.NoError(t, loader.Load(context.Background()))

		assert.Equal(t, "from-env", loader.Get("app.name"))
	})

	t.Run("空配置校验失败", func(t *testing.T) {
		loader, err := New(&Config{Paths: []string{t.TempDir()}})
		require.NoError(t, err)
		require.NoError(t, loader.Load(context.Background()))
		assert.Error(t, loader.Validate())
	})
}

func TestWatch(t *testing.T) {
	t.Run("取消 context 关闭监听通道", func(t *testing.T) {
		dir := t.TempDir()
		writeConfigFile(t, dir, "config.yaml", "key: value\n")

		loader, err := New(&Config{Paths: []string{dir}})
		require.NoError(t, err)
		require.NoError(t, loader.Load(context.Background()))

		ctx, cancel := context.WithCancel(context.Background())
		ch, err := loader.Watch(ctx, "key")
		require.NoError(t, err)

		cancel()
		_, open := <-ch
		assert.False(t, open)
	})
}
