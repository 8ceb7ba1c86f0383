package parser

import (
	"encoding/xml"
	"fmt"
	"math"
	"strconv"

	"github.com/LENAX/dag-cluster/pkg/core/types"
	"github.com/LENAX/dag-cluster/pkg/core/workflow"
)

// daxDocument Pegasus DAX 中用到的部分
type daxDocument struct {
	XMLName  xml.Name   `xml:"adag"`
	JobCount string     `xml:"jobCount,attr"`
	Jobs     []daxJob   `xml:"job"`
	Children []daxChild `xml:"child"`
}

type daxJob struct {
	ID        string `xml:"id,attr"`
	Namespace string `xml:"namespace,attr"`
	Runtime   string `xml:"runtime,attr"`
	Cores     string `xml:"cores,attr"`
}

type daxChild struct {
	Ref     string `xml:"ref,attr"`
	Parents []struct {
		Ref string `xml:"ref,attr"`
	} `xml:"parent"`
}

// ParseDAX 解析 Pegasus DAX
// 任务按文档顺序编号为 1..n；runtime 除以缩放系数并保留3位小数，缺失的 runtime/cores 记为0；
// 工作流名称为 <第一个任务的namespace>_<jobCount>
func (p *Parser) ParseDAX(data []byte) (*workflow.Workflow, error) {
	var doc daxDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("解析DAX失败: %w", err)
	}
	if len(doc.Jobs) == 0 {
		return nil, fmt.Errorf("DAX中没有任何job: %w", types.ErrInvalidInput)
	}

	jobCount := doc.JobCount
	if jobCount == "" {
		jobCount = strconv.Itoa(len(doc.Jobs))
	}
	wf := workflow.NewWorkflow(doc.Jobs[0].Namespace + "_" + jobCount)

	idMap := make(map[string]int, len(doc.Jobs))
	for i, job := range doc.Jobs {
		id := i + 1
		if _, dup := idMap[job.ID]; dup {
			return nil, fmt.Errorf("DAX中job %q 重复: %w", job.ID, types.ErrDuplicateID)
		}
		idMap[job.ID] = id

		runtime, err := parseFloatAttr(job.Runtime)
		if err != nil {
			return nil, fmt.Errorf("job %s 的 runtime 非法: %w", job.ID, err)
		}
		cores, err := parseIntAttr(job.Cores)
		if err != nil {
			return nil, fmt.Errorf("job %s 的 cores 非法: %w", job.ID, err)
		}
		execTime := math.Round(runtime/p.runtimeScale*1000) / 1000
		if err := wf.AddTask(newTask(id, execTime, cores, "")); err != nil {
			return nil, err
		}
	}

	for _, child := range doc.Children {
		childID, ok := idMap[child.Ref]
		if !ok {
			return nil, fmt.Errorf("依赖引用了未知job %q: %w", child.Ref, types.ErrNotFound)
		}
		for _, parent := range child.Parents {
			parentID, ok := idMap[parent.Ref]
			if !ok {
				return nil, fmt.Errorf("依赖引用了未知job %q: %w", parent.Ref, types.ErrNotFound)
			}
			wf.Links[parentID] = append(wf.Links[parentID], childID)
		}
	}
	return wf, nil
}

func parseFloatAttr(v string) (float64, error) {
	if v == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%v: %w", err, types.ErrInvalidInput)
	}
	return f, nil
}

func parseIntAttr(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%v: %w", err, types.ErrInvalidInput)
	}
	return n, nil
}
