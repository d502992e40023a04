package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"sort"
	"strings"
	"time"

	"gcloud-docgen/internal/common/config"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	graphBaseURL = "https://graph.microsoft.com/v1.0"
	graphScope   = "https://graph.microsoft.com/.default"
)

// SharePoint stores objects in the default document library of a site
// through the Microsoft Graph drive API.
type SharePoint struct {
	client   *http.Client
	baseURL  string
	siteID   string
	basePath string
}

// NewSharePoint uses client for every Graph call. The client is expected
// to attach credentials.
func NewSharePoint(client *http.Client, baseURL, siteID, basePath string) *SharePoint {
	if baseURL == "" {
		baseURL = graphBaseURL
	}
	return &SharePoint{
		client:   client,
		baseURL:  strings.TrimRight(baseURL, "/"),
		siteID:   siteID,
		basePath: strings.Trim(basePath, "/"),
	}
}

// NewSharePointFromConfig authenticates with the app registration's client
// credentials.
func NewSharePointFromConfig(ctx context.Context, cfg config.StorageConfig) (*SharePoint, error) {
	sp := cfg.SharePoint
	if sp.TenantID == "" || sp.ClientID == "" || sp.ClientSecret == "" || sp.SiteID == "" {
		return nil, fmt.Errorf("sharepoint tenant, client id, client secret and site id are required")
	}
	cc := clientcredentials.Config{
		ClientID:     sp.ClientID,
		ClientSecret: sp.ClientSecret,
		TokenURL:     fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", url.PathEscape(sp.TenantID)),
		Scopes:       []string{graphScope},
	}
	// The token source outlives ctx, so it gets its own client.
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{Timeout: 30 * time.Second})
	client := cc.Client(tokenCtx)
	client.Timeout = operationTimeout
	return NewSharePoint(client, graphBaseURL, sp.SiteID, sp.BasePath), nil
}

func (s *SharePoint) Backend() string { return "sharepoint" }

type driveItem struct {
	Name   string    `json:"name"`
	Folder *struct{} `json:"folder,omitempty"`
	File   *struct{} `json:"file,omitempty"`
}

type driveChildren struct {
	Value    []driveItem `json:"value"`
	NextLink string      `json:"@odata.nextLink"`
}

// itemURL addresses key relative to the drive root. suffix is appended
// after the path segment, e.g. ":/content".
func (s *SharePoint) itemURL(key, suffix string) string {
	full := strings.Trim(path.Join(s.basePath, cleanKey(key)), "/")
	site := url.PathEscape(s.siteID)
	if full == "" {
		if suffix == ":/children" {
			return fmt.Sprintf("%s/sites/%s/drive/root/children", s.baseURL, site)
		}
		return fmt.Sprintf("%s/sites/%s/drive/root", s.baseURL, site)
	}
	segments := strings.Split(full, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return fmt.Sprintf("%s/sites/%s/drive/root:/%s%s", s.baseURL, site, strings.Join(segments, "/"), suffix)
}

func (s *SharePoint) do(ctx context.Context, method, target string, body []byte, contentType string) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return s.client.Do(req)
}

func graphError(resp *http.Response) error {
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return fmt.Errorf("graph %s %s: status %d: %s", resp.Request.Method, resp.Request.URL.Path, resp.StatusCode, strings.TrimSpace(string(msg)))
}

func (s *SharePoint) Put(ctx context.Context, key string, data []byte, contentType string) error {
	ctx, cancel := context.WithTimeout(ctx, operationTimeout)
	defer cancel()

	resp, err := s.do(ctx, http.MethodPut, s.itemURL(key, ":/content"), data, contentType)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return graphError(resp)
	}
	return nil
}

func (s *SharePoint) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, operationTimeout)
	defer cancel()

	resp, err := s.do(ctx, http.MethodGet, s.itemURL(key, ":/content"), nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK:
		return io.ReadAll(resp.Body)
	case http.StatusNotFound:
		return nil, ErrNotFound
	default:
		return nil, graphError(resp)
	}
}

func (s *SharePoint) item(ctx context.Context, key string) (*driveItem, error) {
	resp, err := s.do(ctx, http.MethodGet, s.itemURL(key, ""), nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, ErrNotFound
	default:
		return nil, graphError(resp)
	}
	var item driveItem
	if err := json.NewDecoder(resp.Body).Decode(&item); err != nil {
		return nil, fmt.Errorf("decode drive item: %w", err)
	}
	return &item, nil
}

func (s *SharePoint) Exists(ctx context.Context, key string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, operationTimeout)
	defer cancel()

	item, err := s.item(ctx, key)
	if err == ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return item.Folder == nil, nil
}

// children lists the direct children of folder, following nextLink pages.
// A missing folder has no children.
func (s *SharePoint) children(ctx context.Context, folder string) ([]driveItem, error) {
	var items []driveItem
	next := s.itemURL(folder, ":/children")
	for next != "" {
		resp, err := s.do(ctx, http.MethodGet, next, nil, "")
		if err != nil {
			return nil, err
		}
		if resp.StatusCode == http.StatusNotFound {
			resp.Body.Close()
			return nil, nil
		}
		if resp.StatusCode != http.StatusOK {
			err := graphError(resp)
			resp.Body.Close()
			return nil, err
		}
		var page driveChildren
		err = json.NewDecoder(resp.Body).Decode(&page)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("decode children: %w", err)
		}
		items = append(items, page.Value...)
		next = page.NextLink
	}
	return items, nil
}

func (s *SharePoint) List(ctx context.Context, prefix string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, operationTimeout)
	defer cancel()

	// Graph has no prefix listing, so walk from the deepest complete folder.
	prefix = cleanKey(prefix)
	start := ""
	if i := strings.LastIndex(prefix, "/"); i >= 0 {
		start = prefix[:i+1]
	}

	var keys []string
	var walk func(folder string) error
	walk = func(folder string) error {
		items, err := s.children(ctx, folder)
		if err != nil {
			return err
		}
		for _, item := range items {
			key := folder + item.Name
			if item.Folder != nil {
				sub := key + "/"
				if strings.HasPrefix(sub, prefix) || strings.HasPrefix(prefix, sub) {
					if err := walk(sub); err != nil {
						return err
					}
				}
				continue
			}
			if strings.HasPrefix(key, prefix) {
				keys = append(keys, key)
			}
		}
		return nil
	}
	if err := walk(start); err != nil {
		return nil, err
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *SharePoint) Folders(ctx context.Context, prefix string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, operationTimeout)
	defer cancel()

	prefix = folderPrefix(prefix)
	items, err := s.children(ctx, prefix)
	if err != nil {
		return nil, err
	}
	var folders []string
	for _, item := range items {
		if item.Folder != nil {
			folders = append(folders, prefix+item.Name+"/")
		}
	}
	return folders, nil
}

func (s *SharePoint) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, operationTimeout)
	defer cancel()

	resp, err := s.do(ctx, http.MethodDelete, s.itemURL(key, ""), nil, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusNoContent, http.StatusOK:
		return nil
	case http.StatusNotFound:
		return ErrNotFound
	default:
		return graphError(resp)
	}
}
