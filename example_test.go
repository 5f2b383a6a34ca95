package hippie_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"

	"github.com/nethippie/hippie"
)

func ExampleNew() {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		body, _ := io.ReadAll(r.Body)
		fmt.Fprintf(w, `{"method":%q,"echo":%s}`, r.Method, body)
	}))
	defer srv.Close()

	c, err := hippie.New(hippie.WithFollowRedirects(3))
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	defer c.Close()

	resp, err := c.Post(context.Background(), srv.URL+"/things", nil, map[string]any{"name": "widget"})
	if err != nil {
		fmt.Println("error:", err)
		return
	}

	fmt.Println(resp.StatusCode)
	fmt.Println(resp.String())
	// Output:
	// 200
	// {"method":"POST","echo":{"name":"widget"}}
}

func ExampleBasicAuth() {
	headers := map[string]string{
		hippie.AuthorizationHeader: hippie.BasicAuth("user", "pass"),
	}
	fmt.Println(headers["Authorization"])
	// Output: Basic dXNlcjpwYXNz
}

func ExampleNew_retry() {
	c, err := hippie.New()
	if err != nil {
		fmt.Println("error:", err)
		return
	}

	// Permanent errors are returned after a single attempt
	attempts := 0
	_, err = c.WithRetry(context.Background(), 3, func(ctx context.Context) (*hippie.Response, error) {
		attempts++
		return nil, fmt.Errorf("bad input")
	})
	fmt.Println(attempts, err)
	// Output: 1 bad input
}
