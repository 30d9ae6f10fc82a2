package caldav

import (
	"fmt"
	"sync"
	"testing"

	"github.com/emersion/go-webdav/caldav"
)

func TestConcurrentConnect(t *testing.T) {
	c := NewClient("https://dav.example.org", "me", "secret")

	const n = 8
	clients := make([]*caldav.Client, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cl, err := c.connect()
			if err != nil {
				t.Errorf("connect() error = %v", err)
				return
			}
			clients[i] = cl
			c.SetHomeSet(fmt.Sprintf("/calendars/%d/", i))
			_ = c.cachedHomeSet()
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		if clients[i] != clients[0] {
			t.Fatalf("connect() built %d distinct clients, want one", n)
		}
	}
}

func TestIsConfigured(t *testing.T) {
	if NewClient("", "me", "").IsConfigured() {
		t.Error("client without password reported configured")
	}
	c := NewClient("", "me", "secret")
	if !c.IsConfigured() || c.baseURL != DefaultiCloudURL {
		t.Errorf("client = %+v", c)
	}
}
