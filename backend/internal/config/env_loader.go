/*
 * @Author: NEFU AB-IN
 * @Date: 2025-10-08 17:58:06
 * @FilePath: \iqupdate\backend\internal\config\env_loader.go
 * @LastEditTime: 2025-10-21 10:14:52
 */
package config

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/joho/godotenv"
)

// envFileNames 按优先级排列：.env.local 中的键先写入，.env 只补齐缺失项。
var envFileNames = []string{".env.local", ".env"}

// envFiles 记录 .env 文件的加载状态，进程内只加载一次。
type envFiles struct {
	mu       sync.Mutex
	loaded   bool
	disabled bool
	paths    []string
}

var dotenv = &envFiles{}

// LoadEnvFiles 从当前目录向上查找 .env.local 与 .env 并写入进程环境，返回实际加载的文件。
// 进程中已存在的环境变量不会被覆盖；设置 CONFIG_SKIP_ENV_LOAD=1 可跳过。
func LoadEnvFiles() []string {
	return dotenv.load()
}

func (e *envFiles) load() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.disabled || os.Getenv("CONFIG_SKIP_ENV_LOAD") == "1" {
		return nil
	}
	if e.loaded {
		return e.paths
	}
	e.loaded = true

	found := make([]string, 0, len(envFileNames))
	for _, name := range envFileNames {
		if path, ok := findEnvFile(name); ok {
			found = append(found, path)
		}
	}
	if len(found) == 0 {
		return nil
	}
	// godotenv.Load 不覆盖已有变量，先加载的文件优先。
	if err := godotenv.Load(found...); err != nil {
		return nil
	}
	e.paths = found
	return e.paths
}

// reset 清空加载状态，disabled 为 true 时后续调用不再读取文件。
func (e *envFiles) reset(disabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.loaded = false
	e.disabled = disabled
	e.paths = nil
}

// findEnvFile 自 cwd 起逐级向上查找 name。
func findEnvFile(name string) (string, bool) {
	dir, err := os.Getwd()
	if err != nil {
		return "", false
	}
	for {
		candidate := filepath.Join(dir, name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}
