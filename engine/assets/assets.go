package assets

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spaghettifunk/array/engine/assets/loaders"
	"github.com/spaghettifunk/array/engine/core"
	"github.com/spaghettifunk/array/engine/renderer/metadata"
)

const shaderDir = "shaders"

type AssetInfo struct {
	// Path relative to the asset directory, slash separated.
	Path       string
	Type       metadata.ResourceType
	LastLoaded time.Time
	Modified   time.Time
}

// AssetManager indexes an asset directory and keeps the index current while
// watching it. It implements metadata.ShaderLibrary over the compiled stages
// in shaders/.
type AssetManager struct {
	dir     string
	assets  map[string]AssetInfo
	loaders map[metadata.ResourceType]Loader
	shaders map[string][]byte

	mutex sync.RWMutex

	done     chan struct{}
	wg       sync.WaitGroup
	fsnotify *fsnotify.Watcher
	isClosed bool
}

func NewAssetManager() (*AssetManager, error) {
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	am := &AssetManager{
		assets:   make(map[string]AssetInfo),
		loaders:  make(map[metadata.ResourceType]Loader),
		shaders:  make(map[string][]byte),
		fsnotify: fsWatch,
		done:     make(chan struct{}),
	}

	// Register loaders
	am.registerLoader(metadata.ResourceTypeShader, &loaders.ShaderLoader{})
	am.registerLoader(metadata.ResourceTypeImage, &loaders.ImageLoader{})
	am.registerLoader(metadata.ResourceTypeBinary, &loaders.BinaryLoader{Type: metadata.ResourceTypeBinary})
	am.registerLoader(metadata.ResourceTypeText, &loaders.BinaryLoader{Type: metadata.ResourceTypeText})
	am.registerLoader(metadata.ResourceTypeConfig, &loaders.BinaryLoader{Type: metadata.ResourceTypeConfig})
	return am, nil
}

// Initialize indexes assetsDir. With watch set, changes are tracked until
// Shutdown and shader rewrites fire EVENT_CODE_SHADER_CHANGED.
func (am *AssetManager) Initialize(assetsDir string, watch bool) error {
	dir, err := filepath.Abs(assetsDir)
	if err != nil {
		return err
	}
	if s, err := os.Stat(dir); err != nil {
		return err
	} else if !s.IsDir() {
		return fmt.Errorf("asset path %s is not a directory", dir)
	}
	am.dir = dir

	if err := am.watchRecursive(dir, !watch); err != nil {
		return err
	}
	if watch {
		am.wg.Add(1)
		go am.start()
	}
	core.LogInfo("asset manager indexed %d assets in %s", am.Count(), dir)
	return nil
}

func (am *AssetManager) Dir() string {
	return am.dir
}

func (am *AssetManager) Count() int {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	return len(am.assets)
}

// Info reports the index entry for name.
func (am *AssetManager) Info(name string) (AssetInfo, bool) {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	info, ok := am.assets[filepath.ToSlash(name)]
	return info, ok
}

// Register loaders for each asset type
func (am *AssetManager) registerLoader(assetType metadata.ResourceType, loader Loader) {
	am.loaders[assetType] = loader
}

// LoadAsset loads name, a path relative to the asset directory, with the
// loader registered for resourceType.
func (am *AssetManager) LoadAsset(name string, resourceType metadata.ResourceType, params interface{}) (*metadata.Resource, error) {
	key := filepath.ToSlash(name)

	am.mutex.Lock()
	asset, exists := am.assets[key]
	if exists {
		// Update the loaded time
		asset.LastLoaded = time.Now()
		am.assets[key] = asset
	}
	am.mutex.Unlock()
	if !exists {
		return nil, fmt.Errorf("%s: %w", key, core.ErrAssetNotFound)
	}
	if asset.Type != resourceType {
		return nil, fmt.Errorf("asset %s has type %s, not %s", key, asset.Type, resourceType)
	}

	loader, loaderExists := am.loaders[asset.Type]
	if !loaderExists {
		return nil, fmt.Errorf("no loader registered for asset type: %s", asset.Type)
	}
	return loader.Load(filepath.Join(am.dir, filepath.FromSlash(key)), params)
}

func (am *AssetManager) UnloadAsset(asset *metadata.Resource) error {
	if asset == nil {
		return nil
	}
	loader, ok := am.loaders[asset.ResourceType]
	if !ok {
		return nil
	}
	return loader.Unload(asset)
}

// Shader returns the SPIR-V for a stage name such as "sdf.frag", read from
// shaders/sdf.frag.spv. Stages are cached until their file changes.
func (am *AssetManager) Shader(name string) ([]byte, error) {
	am.mutex.RLock()
	code, ok := am.shaders[name]
	am.mutex.RUnlock()
	if ok {
		return code, nil
	}

	res, err := am.LoadAsset(shaderDir+"/"+name+".spv", metadata.ResourceTypeShader, nil)
	if errors.Is(err, core.ErrAssetNotFound) {
		return nil, fmt.Errorf("%s: %w", name, core.ErrShaderNotFound)
	}
	if err != nil {
		return nil, err
	}
	code = res.Data.([]byte)

	am.mutex.Lock()
	am.shaders[name] = code
	am.mutex.Unlock()
	return code, nil
}

// Image decodes a PNG or JPEG, scaled to size unless size is zero.
func (am *AssetManager) Image(name string, size image.Point) (*image.RGBA, error) {
	res, err := am.LoadAsset(name, metadata.ResourceTypeImage, &loaders.ImageParams{Size: size})
	if err != nil {
		return nil, err
	}
	return res.Data.(*image.RGBA), nil
}

func (am *AssetManager) Shutdown() error {
	am.mutex.Lock()
	if am.isClosed {
		am.mutex.Unlock()
		return nil
	}
	am.isClosed = true
	am.mutex.Unlock()

	close(am.done)
	err := am.fsnotify.Close()
	am.wg.Wait()
	return err
}

func (am *AssetManager) start() {
	defer am.wg.Done()
	for {
		select {
		case e, ok := <-am.fsnotify.Events:
			if !ok {
				return
			}
			s, err := os.Stat(e.Name)
			if err == nil && s != nil && s.IsDir() {
				if e.Op&fsnotify.Create != 0 {
					if err := am.watchRecursive(e.Name, false); err != nil {
						core.LogWarn("watching %s: %s", e.Name, err)
					}
				}
				continue
			}
			// Handle create or modify events
			if e.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				am.handleFileEvent(e.Name, true)
			}
			// Can't stat a deleted path, so it is dropped from both the index and the watch list.
			if e.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				am.removeAsset(e.Name)
				_ = am.fsnotify.Remove(e.Name)
			}

		case err, ok := <-am.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError("asset watcher: %s", err)

		case <-am.done:
			return
		}
	}
}

// watchRecursive indexes every file under path and, unless indexOnly is set,
// adds every directory to the watch list.
func (am *AssetManager) watchRecursive(path string, indexOnly bool) error {
	return filepath.Walk(path, func(walkPath string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			if indexOnly {
				return nil
			}
			return am.fsnotify.Add(walkPath)
		}
		am.handleFileEvent(walkPath, false)
		return nil
	})
}

func (am *AssetManager) relative(path string) (string, bool) {
	rel, err := filepath.Rel(am.dir, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// Handle the creation or modification of a file
func (am *AssetManager) handleFileEvent(path string, changed bool) {
	key, ok := am.relative(path)
	if !ok {
		return
	}
	assetType := determineAssetType(key)
	if assetType == metadata.ResourceTypeUnknown {
		return
	}

	var modified time.Time
	if s, err := os.Stat(path); err == nil {
		modified = s.ModTime()
	}

	am.mutex.Lock()
	am.assets[key] = AssetInfo{
		Path:     key,
		Type:     assetType,
		Modified: modified,
	}
	var stage string
	if assetType == metadata.ResourceTypeShader {
		stage = loaders.StageName(key)
		delete(am.shaders, stage)
	}
	am.mutex.Unlock()

	if changed && stage != "" {
		core.LogInfo("shader %s changed on disk", stage)
		core.EventFire(core.EventContext{
			Type: core.EVENT_CODE_SHADER_CHANGED,
			Data: stage,
		})
	}
}

// Remove the asset from the index if it was deleted
func (am *AssetManager) removeAsset(path string) {
	key, ok := am.relative(path)
	if !ok {
		return
	}
	am.mutex.Lock()
	defer am.mutex.Unlock()

	delete(am.assets, key)
	if determineAssetType(key) == metadata.ResourceTypeShader {
		delete(am.shaders, loaders.StageName(key))
	}
}

func determineAssetType(path string) metadata.ResourceType {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".spv":
		return metadata.ResourceTypeShader
	case ".png", ".jpg", ".jpeg":
		return metadata.ResourceTypeImage
	case ".toml":
		return metadata.ResourceTypeConfig
	case ".txt", ".md":
		return metadata.ResourceTypeText
	case ".bin":
		return metadata.ResourceTypeBinary
	default:
		return metadata.ResourceTypeUnknown
	}
}
