// Package fingerprint 计算文件内容指纹（xxhash 64 位）。
//
// 小于阈值的文件做全量流式哈希；达到阈值的大文件只采样
// 头/中/尾各 1MiB 并混入文件长度，换取大视频上数量级的提速。
package fingerprint

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"

	"github.com/John-Robertt/mediasort/internal/domain"
)

// sampleSize 是采样哈希单个分片的大小（1 MiB）。
const sampleSize int64 = 1 << 20

// copyBufSize 与执行阶段的拷贝缓冲保持一致。
const copyBufSize = 256 * 1024

// Compute 计算指纹。size 必须是调用方已 stat 到的真实大小；
// 相同内容（与相同大小）在两种路径下各自稳定，但全量与采样结果不可互比，
// Sampled 标志位随指纹一起保存以防误判。
func Compute(path string, size, threshold int64) (domain.Fingerprint, error) {
	if size >= threshold {
		return computeSampled(path, size)
	}
	return computeFull(path)
}

func computeFull(path string) (domain.Fingerprint, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.Fingerprint{}, err
	}
	defer f.Close()

	d := xxhash.New()
	buf := make([]byte, copyBufSize)
	if _, err := io.CopyBuffer(d, f, buf); err != nil {
		return domain.Fingerprint{}, fmt.Errorf("读取文件失败：%w", err)
	}
	return domain.Fingerprint{Algo: "xxh64", Sum: d.Sum64()}, nil
}

// computeSampled 等价于对「长度 LE 字节 + 头分片 + 中分片 + 尾分片」
// 拼接后的字节串做一次哈希，但分片直接流入 digest，不做整体拼接。
func computeSampled(path string, size int64) (domain.Fingerprint, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.Fingerprint{}, err
	}
	defer f.Close()

	d := xxhash.New()

	var sizeLE [8]byte
	binary.LittleEndian.PutUint64(sizeLE[:], uint64(size))
	_, _ = d.Write(sizeLE[:])

	head := sampleSize
	if size < head {
		head = size
	}
	if err := hashSegment(d, f, 0, head); err != nil {
		return domain.Fingerprint{}, fmt.Errorf("读取文件头部失败：%w", err)
	}

	if size > sampleSize*2 {
		if err := hashSegment(d, f, (size-sampleSize)/2, sampleSize); err != nil {
			return domain.Fingerprint{}, fmt.Errorf("读取文件中部失败：%w", err)
		}
	}

	if size > sampleSize {
		if err := hashSegment(d, f, size-sampleSize, sampleSize); err != nil {
			return domain.Fingerprint{}, fmt.Errorf("读取文件尾部失败：%w", err)
		}
	}

	return domain.Fingerprint{Algo: "xxh64", Sum: d.Sum64(), Sampled: true}, nil
}

func hashSegment(d *xxhash.Digest, f *os.File, off, n int64) error {
	if _, err := f.Seek(off, io.SeekStart); err != nil {
		return err
	}
	buf := make([]byte, copyBufSize)
	_, err := io.CopyBuffer(d, io.LimitReader(f, n), buf)
	return err
}
