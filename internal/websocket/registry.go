package websocket

import (
	"sync"
)

// Registry 连接注册表
// 维护 userID 到活跃连接的映射，一个用户最多一条连接，
// 新连接会替换并关闭旧连接
type Registry struct {
	mu      sync.RWMutex
	clients map[int64]*Client
}

// NewRegistry 创建 Registry 实例
func NewRegistry() *Registry {
	return &Registry{
		clients: make(map[int64]*Client),
	}
}

// Add 登记客户端
// 返回被替换的旧连接（没有则为 nil），由调用方负责关闭
func (r *Registry) Add(client *Client) *Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	old := r.clients[client.userID]
	if old == client {
		return nil
	}
	r.clients[client.userID] = client
	return old
}

// Remove 注销客户端
// 只有当前登记的连接才会被移除，过期连接的注销不影响新连接
func (r *Registry) Remove(client *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, exists := r.clients[client.userID]; exists && current == client {
		delete(r.clients, client.userID)
		return true
	}
	return false
}

// Get 查找用户的活跃连接
func (r *Registry) Get(userID int64) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	client, exists := r.clients[userID]
	return client, exists
}

// OnlineUserIDs 返回所有在线用户ID
func (r *Registry) OnlineUserIDs() []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]int64, 0, len(r.clients))
	for id := range r.clients {
		ids = append(ids, id)
	}
	return ids
}

// Count 返回在线连接数
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}
